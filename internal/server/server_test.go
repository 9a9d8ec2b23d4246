package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/lokera/lokera/internal/auth/domain"
	authrepo "github.com/lokera/lokera/internal/auth/repository"
	authservice "github.com/lokera/lokera/internal/auth/service"
	"github.com/lokera/lokera/internal/auth/session"
	"github.com/lokera/lokera/internal/clock"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/gate"
	"github.com/lokera/lokera/internal/observability"
	"github.com/lokera/lokera/internal/permission"
	permdomain "github.com/lokera/lokera/internal/permission/domain"
	permrepo "github.com/lokera/lokera/internal/permission/repository"
	"github.com/lokera/lokera/internal/plan"
	plandomain "github.com/lokera/lokera/internal/plan/domain"
	planrepo "github.com/lokera/lokera/internal/plan/repository"
	"github.com/lokera/lokera/internal/ratelimit"
	"github.com/lokera/lokera/internal/subscription"
	subdomain "github.com/lokera/lokera/internal/subscription/domain"
	subrepo "github.com/lokera/lokera/internal/subscription/repository"
	subservice "github.com/lokera/lokera/internal/subscription/service"
	"github.com/lokera/lokera/internal/tenant"
	tenantdomain "github.com/lokera/lokera/internal/tenant/domain"
	tenantrepo "github.com/lokera/lokera/internal/tenant/repository"
	tenantservice "github.com/lokera/lokera/internal/tenant/service"
	"github.com/lokera/lokera/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type serverFixture struct {
	srv  *Server
	db   *gorm.DB
	node *snowflake.Node
}

// newTestServer wires the full handler stack over an in-memory database.
func newTestServer(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&authdomain.User{}, &authdomain.Session{},
		&tenantdomain.Organization{},
		&permdomain.Profile{}, &permdomain.ObjectPermission{},
		&plandomain.Plan{}, &plandomain.PlanFeature{},
		&subdomain.Subscription{},
	))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	log := zap.NewNop()
	cfg := config.Config{
		BaseDomain:           "platform.com",
		BaseScheme:           "https",
		BillingWebhookSecret: "hook-secret",
	}
	holder := config.NewStaticAccessConfigHolder(config.DefaultAccessConfig())
	clk := clock.NewSystemClock()

	users, sessionRepo := authrepo.New(dbConn)
	authsvc := authservice.New(log, cfg, users, sessionRepo, node, clk)

	tenantRepo := tenantrepo.NewRepository(dbConn)
	dir := tenant.NewDirectory(log, cfg, holder, tenantRepo)
	resolver := tenant.NewResolver(log, cfg, dir)
	tenantsvc := tenantservice.NewService(log, tenantRepo, dir, holder, node, clk)

	permRepo := permrepo.NewRepository(dbConn)
	permCatalog := permission.NewCatalog(log, holder, permRepo)
	planRepo := planrepo.NewRepository(dbConn)
	planCatalog := plan.NewCatalog(log, holder, planRepo)
	subs := subscription.NewStatusProvider(log, holder, subrepo.NewRepository(dbConn))
	evaluator := permission.NewEvaluator(permission.EvaluatorParams{
		Log:     log,
		Catalog: permCatalog,
		Plans:   planCatalog,
		Subs:    subs,
	})
	machine := gate.NewMachine(gate.MachineParams{
		Log:       log,
		Holder:    holder,
		Resolver:  resolver,
		Directory: dir,
		Subs:      subs,
		Evaluator: evaluator,
	})
	billing := subservice.NewService(log, subrepo.NewRepository(dbConn), planRepo, subs, node, clk)

	engine := NewEngine(observability.Config{})
	srv := NewServer(ServerParams{
		Gin:          engine,
		Cfg:          cfg,
		Log:          log,
		Authsvc:      authsvc,
		Users:        users,
		Sessions:     session.NewManager(cfg),
		GenID:        node,
		Machine:      machine,
		Resolver:     resolver,
		Directory:    dir,
		Tenantsvc:    tenantsvc,
		Evaluator:    evaluator,
		PermCatalog:  permCatalog,
		PermRepo:     permRepo,
		PlanCatalog:  planCatalog,
		PlanRepo:     planRepo,
		Billing:      billing,
		Subs:         subs,
		LoginLimiter: ratelimit.NewLoginLimiter(ratelimit.LoginParams{Log: log}),
	})

	return &serverFixture{srv: srv, db: dbConn, node: node}
}

func (f *serverFixture) request(t *testing.T, method, path string, body any, cookie string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = "platform.com"
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: cookie})
	}
	resp := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(resp, req)
	return resp
}

func sessionCookie(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()

	for _, c := range resp.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.Value != "" {
			return c.Value
		}
	}
	t.Fatal("no session cookie set")
	return ""
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func (f *serverFixture) seedAdminProfile(t *testing.T) permdomain.Profile {
	t.Helper()

	profile := permdomain.Profile{ID: f.node.Generate(), Name: permdomain.ProfileSystemAdministrator}
	require.NoError(t, f.db.Create(&profile).Error)
	for _, objectType := range permdomain.ObjectTypes() {
		require.NoError(t, f.db.Create(&permdomain.ObjectPermission{
			ID:         f.node.Generate(),
			ProfileID:  profile.ID,
			ObjectType: string(objectType),
			CanRead:    true,
			CanCreate:  true,
			CanEdit:    true,
			CanDelete:  true,
			CanViewAll: true,
		}).Error)
	}
	return profile
}

func (f *serverFixture) seedPlan(t *testing.T, code string) plandomain.Plan {
	t.Helper()

	p := plandomain.Plan{ID: f.node.Generate(), Code: code, Name: code}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *serverFixture) signUpAndIn(t *testing.T, email string) string {
	t.Helper()

	resp := f.request(t, http.MethodPost, "/auth/sign-up", gin.H{
		"email":    email,
		"password": "correct-horse",
	}, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return sessionCookie(t, resp)
}

func TestSignUpSignInSignOut(t *testing.T) {
	f := newTestServer(t)

	cookie := f.signUpAndIn(t, "alice@example.com")

	resp := f.request(t, http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])

	resp = f.request(t, http.MethodPost, "/auth/sign-out", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.request(t, http.MethodGet, "/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestSignInWrongPassword(t *testing.T) {
	f := newTestServer(t)
	f.signUpAndIn(t, "alice@example.com")

	resp := f.request(t, http.MethodPost, "/auth/sign-in", gin.H{
		"email":    "alice@example.com",
		"password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestDuplicateSignUpConflicts(t *testing.T) {
	f := newTestServer(t)
	f.signUpAndIn(t, "alice@example.com")

	resp := f.request(t, http.MethodPost, "/auth/sign-up", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestSetupFlow(t *testing.T) {
	f := newTestServer(t)
	f.seedAdminProfile(t)
	cookie := f.signUpAndIn(t, "owner@example.com")

	resp := f.request(t, http.MethodPost, "/api/setup", gin.H{
		"name":      "Acme Estates",
		"subdomain": "acme",
	}, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decodeBody(t, resp)
	assert.Equal(t, "https://acme.platform.com/dashboard", body["redirect"])

	org := body["organization"].(map[string]any)
	assert.Equal(t, true, org["is_configured"])
	assert.Equal(t, "acme", org["subdomain"])

	// The owner received the administrator profile during setup.
	resp = f.request(t, http.MethodGet, "/api/authorize?object_type=organization&action=edit", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, decodeBody(t, resp)["allowed"])

	// A configured organization cannot run setup again.
	resp = f.request(t, http.MethodPost, "/api/setup", gin.H{
		"name":      "Acme Estates",
		"subdomain": "acme2",
	}, cookie)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestSetupRejectsReservedSubdomain(t *testing.T) {
	f := newTestServer(t)
	f.seedAdminProfile(t)
	cookie := f.signUpAndIn(t, "owner@example.com")

	resp := f.request(t, http.MethodPost, "/api/setup", gin.H{
		"name":      "Acme Estates",
		"subdomain": "admin",
	}, cookie)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAuthorizeRequiresSession(t *testing.T) {
	f := newTestServer(t)

	resp := f.request(t, http.MethodGet, "/api/authorize?object_type=unit&action=read", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthorizeUnknownObjectType(t *testing.T) {
	f := newTestServer(t)
	cookie := f.signUpAndIn(t, "alice@example.com")

	resp := f.request(t, http.MethodGet, "/api/authorize?object_type=spaceship&action=read", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestProfileManagement(t *testing.T) {
	f := newTestServer(t)
	f.seedAdminProfile(t)
	cookie := f.signUpAndIn(t, "owner@example.com")

	resp := f.request(t, http.MethodPost, "/api/setup", gin.H{
		"name":      "Acme Estates",
		"subdomain": "acme",
	}, cookie)
	require.Equal(t, http.StatusOK, resp.Code)

	// The reserved name cannot be claimed by a tenant profile.
	resp = f.request(t, http.MethodPost, "/api/profiles", gin.H{
		"name": permdomain.ProfileSystemAdministrator,
	}, cookie)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = f.request(t, http.MethodPost, "/api/profiles", gin.H{"name": "Agent"}, cookie)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	created := decodeBody(t, resp)["profile"].(map[string]any)
	profileID := created["id"].(string)

	resp = f.request(t, http.MethodPut, "/api/profiles/"+profileID+"/permissions", gin.H{
		"object_type": "unit",
		"can_read":    true,
		"can_create":  true,
	}, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	// view_all without read never persists.
	resp = f.request(t, http.MethodPut, "/api/profiles/"+profileID+"/permissions", gin.H{
		"object_type":  "unit",
		"can_view_all": true,
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = f.request(t, http.MethodGet, "/api/profiles", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	profiles := decodeBody(t, resp)["profiles"].([]any)
	assert.Len(t, profiles, 2)
}

func TestAdminAPIRequiresSuperAdmin(t *testing.T) {
	f := newTestServer(t)
	cookie := f.signUpAndIn(t, "alice@example.com")

	resp := f.request(t, http.MethodGet, "/admin/api/orgs", nil, cookie)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestSuperAdminImpersonationAPI(t *testing.T) {
	f := newTestServer(t)
	cookie := f.signUpAndIn(t, "root@example.com")
	require.NoError(t, f.db.Model(&authdomain.User{}).
		Where("email = ?", "root@example.com").
		Update("is_super_admin", true).Error)

	resp := f.request(t, http.MethodPost, "/admin/api/orgs", gin.H{"name": "Tenant Co"}, cookie)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	org := decodeBody(t, resp)["organization"].(map[string]any)
	orgID := org["id"].(string)

	resp = f.request(t, http.MethodPost, "/admin/api/orgs/"+orgID+"/use", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = f.request(t, http.MethodGet, "/api/organizations/me", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	me := decodeBody(t, resp)["organization"].(map[string]any)
	assert.Equal(t, orgID, me["id"])

	resp = f.request(t, http.MethodPost, "/admin/api/orgs/release", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.request(t, http.MethodGet, "/api/organizations/me", nil, cookie)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestBillingWebhook(t *testing.T) {
	f := newTestServer(t)
	f.seedAdminProfile(t)
	f.seedPlan(t, "growth")
	cookie := f.signUpAndIn(t, "owner@example.com")

	resp := f.request(t, http.MethodPost, "/api/setup", gin.H{
		"name":      "Acme Estates",
		"subdomain": "acme",
	}, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	orgID := decodeBody(t, resp)["organization"].(map[string]any)["id"].(string)

	// Missing secret is rejected before the body is read.
	resp = f.request(t, http.MethodPost, "/webhooks/billing/stripe", gin.H{
		"organization_id": orgID,
		"plan_code":       "growth",
		"status":          "active",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing/stripe",
		bytes.NewBufferString(`{"organization_id":"`+orgID+`","plan_code":"growth","status":"active"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub := decodeBody(t, rec)["subscription"].(map[string]any)
	assert.Equal(t, "active", sub["status"])

	// The subscription now unlocks the organization's pages.
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "acme.platform.com"
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: cookie})
	rec = httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusFound, rec.Code)
}

func TestGateRedirectsAnonymousPage(t *testing.T) {
	f := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "platform.com"
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/sign-in?redirect=%2Fdashboard", rec.Header().Get("Location"))
}

func TestGateSendsFreshAccountToSetup(t *testing.T) {
	f := newTestServer(t)
	cookie := f.signUpAndIn(t, "alice@example.com")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "platform.com"
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: cookie})
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/setup", rec.Header().Get("Location"))
}
