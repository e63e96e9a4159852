package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesight/hseai/pkg/auth"
)

// fakeService implements the Service interface for testing and counts how
// many reads reach the database layer.
type fakeService struct {
	profiles map[string]*UserProfile
	orgs     map[string]*Organization
	ledgers  map[string]*UsageLedger

	profileReads int
	orgReads     int
}

func newFakeService() *fakeService {
	return &fakeService{
		profiles: make(map[string]*UserProfile),
		orgs:     make(map[string]*Organization),
		ledgers:  make(map[string]*UsageLedger),
	}
}

func (f *fakeService) GetProfile(ctx context.Context, principalID string) (*UserProfile, error) {
	f.profileReads++
	p, ok := f.profiles[principalID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeService) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	f.orgReads++
	o, ok := f.orgs[orgID]
	if !ok {
		return nil, ErrOrganizationNotFound
	}
	return o, nil
}

func (f *fakeService) GetUsage(ctx context.Context, orgID string) (*UsageLedger, error) {
	l, ok := f.ledgers[orgID]
	if !ok {
		return &UsageLedger{OrgID: orgID}, nil
	}
	return l, nil
}

func (f *fakeService) Onboard(ctx context.Context, principal *auth.Principal, orgName string, orgType OrganizationType) (*Organization, *UserProfile, error) {
	org := &Organization{
		ID:       "org_" + principal.ID + "_1",
		Name:     orgName,
		Type:     orgType,
		OwnerID:  principal.ID,
		Settings: DefaultOrgSettings(),
		Subscription: Subscription{
			Plan:   PlanStarter,
			Status: SubscriptionActive,
		},
	}
	profile := &UserProfile{
		ID:             principal.ID,
		Email:          principal.Email,
		OrganizationID: org.ID,
		Role:           auth.RoleOwner,
	}
	f.orgs[org.ID] = org
	f.profiles[profile.ID] = profile
	return org, profile, nil
}

func (f *fakeService) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	for _, l := range f.ledgers {
		l.MonthlyReports = 0
	}
	return int64(len(f.ledgers)), nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCachedService_GetProfileReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := newFakeService()
	inner.profiles["user-1"] = &UserProfile{ID: "user-1", OrganizationID: "org-1"}

	svc := NewCachedService(inner, newTestRedis(t), nil, DefaultCacheConfig())

	p, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", p.OrganizationID)
	assert.Equal(t, 1, inner.profileReads)

	// Second read is served from cache.
	p, err = svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", p.OrganizationID)
	assert.Equal(t, 1, inner.profileReads)
}

func TestCachedService_RedisLayerSurvivesMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	inner := newFakeService()
	inner.orgs["org-1"] = &Organization{ID: "org-1", Name: "Acme"}

	cfg := CacheConfig{MaxEntries: 8, MemoryTTL: time.Millisecond, RedisTTL: time.Minute}
	svc := NewCachedService(inner, newTestRedis(t), nil, cfg)

	_, err := svc.GetOrganization(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.orgReads)

	time.Sleep(5 * time.Millisecond)

	// The memory entry has expired but Redis still has it.
	o, err := svc.GetOrganization(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", o.Name)
	assert.Equal(t, 1, inner.orgReads)
}

func TestCachedService_MissPropagatesNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewCachedService(newFakeService(), newTestRedis(t), nil, DefaultCacheConfig())

	_, err := svc.GetProfile(ctx, "nobody")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = svc.GetOrganization(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestCachedService_OnboardSeedsCache(t *testing.T) {
	ctx := context.Background()
	inner := newFakeService()
	svc := NewCachedService(inner, newTestRedis(t), nil, DefaultCacheConfig())

	principal := &auth.Principal{ID: "user-1", Email: "owner@example.com"}
	org, profile, err := svc.Onboard(ctx, principal, "Acme Safety", OrgTypeStartup)
	require.NoError(t, err)

	// Subsequent reads are served without touching the inner service.
	got, err := svc.GetProfile(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.OrganizationID)
	assert.Equal(t, 0, inner.profileReads)

	gotOrg, err := svc.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Safety", gotOrg.Name)
	assert.Equal(t, 0, inner.orgReads)
}

func TestCachedService_WorksWithoutRedis(t *testing.T) {
	ctx := context.Background()
	inner := newFakeService()
	inner.profiles["user-1"] = &UserProfile{ID: "user-1"}

	svc := NewCachedService(inner, nil, nil, DefaultCacheConfig())

	_, err := svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	_, err = svc.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.profileReads)
}

func TestCachedService_UsageNeverCached(t *testing.T) {
	ctx := context.Background()
	inner := newFakeService()
	inner.ledgers["org-1"] = &UsageLedger{OrgID: "org-1", MonthlyReports: 4}

	svc := NewCachedService(inner, newTestRedis(t), nil, DefaultCacheConfig())

	l, err := svc.GetUsage(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 4, l.MonthlyReports)

	inner.ledgers["org-1"].MonthlyReports = 5
	l, err = svc.GetUsage(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 5, l.MonthlyReports)
}
