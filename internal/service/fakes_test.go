package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/customer-portal-go/internal/access"
	"github.com/openclaw/customer-portal-go/internal/database"
	"github.com/openclaw/customer-portal-go/internal/metrics"
	"github.com/openclaw/customer-portal-go/internal/model"
	"github.com/openclaw/customer-portal-go/internal/repository"
)

// memDB is an in-memory stand-in for the Postgres tables.
type memDB struct {
	seq        int
	profiles   map[string]*model.PortalProfile
	users      map[string]*model.PortalUser
	identities map[string]*model.Identity
	roles      map[string]map[string]bool
	customers  map[string]*model.Customer
	sessions   map[string]*model.Session
	txCount    int
	commitErr  error
}

func newMemDB() *memDB {
	return &memDB{
		profiles:   map[string]*model.PortalProfile{},
		users:      map[string]*model.PortalUser{},
		identities: map[string]*model.Identity{},
		roles:      map[string]map[string]bool{},
		customers:  map[string]*model.Customer{},
		sessions:   map[string]*model.Session{},
	}
}

func (m *memDB) nextID(prefix string) string {
	m.seq++
	return prefix + "-" + strconv.Itoa(m.seq)
}

func (m *memDB) WithTx(ctx context.Context, fn database.TxFunc) error {
	m.txCount++
	if err := fn(nil); err != nil {
		return err
	}
	return m.commitErr
}

func (m *memDB) store() Store {
	return Store{
		Profiles:   &fakeProfiles{m},
		Users:      &fakeUsers{m},
		Identities: &fakeIdentities{m},
		Customers:  &fakeCustomers{m},
	}
}

func (m *memDB) addCustomer(id, name string) {
	m.customers[id] = &model.Customer{ID: id, CustomerName: name}
}

func (m *memDB) addIdentity(id string, roles ...string) {
	m.identities[id] = &model.Identity{ID: id, Email: id, FullName: "Name " + id, Enabled: true}
	for _, r := range roles {
		m.grant(id, r)
	}
}

func (m *memDB) grant(id, role string) {
	if m.roles[id] == nil {
		m.roles[id] = map[string]bool{}
	}
	m.roles[id][role] = true
}

func (m *memDB) hasRole(id, role string) bool {
	return m.roles[id][role]
}

func (m *memDB) addProfile(customer string, enabled bool) *model.PortalProfile {
	p := &model.PortalProfile{ID: m.nextID("prof"), CustomerID: customer, CompanyName: customer + " Co", Enabled: enabled}
	m.profiles[p.ID] = p
	return p
}

func (m *memDB) addUser(customer, identity string, profile *model.PortalProfile, enabled bool) *model.PortalUser {
	u := &model.PortalUser{ID: m.nextID("pu"), CustomerID: customer, IdentityID: identity, Enabled: enabled}
	if profile != nil {
		id := profile.ID
		u.PortalProfileID = &id
	}
	m.users[u.ID] = u
	if enabled {
		m.grant(identity, model.RolePortalUser)
	}
	return u
}

func matches(f model.Filter, value func(field string) (any, bool)) (bool, error) {
	if f.MatchNone {
		return false, nil
	}
	for _, c := range f.Conditions {
		v, ok := value(c.Field)
		if !ok {
			return false, fmt.Errorf("%w: %s", repository.ErrUnknownField, c.Field)
		}
		if v != c.Value {
			return false, nil
		}
	}
	return true, nil
}

func profileField(p *model.PortalProfile) func(string) (any, bool) {
	return func(field string) (any, bool) {
		switch field {
		case model.FieldCustomer:
			return p.CustomerID, true
		case model.FieldEnabled:
			return p.Enabled, true
		case model.FieldCompanyName:
			return p.CompanyName, true
		case model.FieldTaxID:
			if p.TaxID == nil {
				return nil, true
			}
			return *p.TaxID, true
		case model.FieldCommercialNumber:
			if p.CommercialNumber == nil {
				return nil, true
			}
			return *p.CommercialNumber, true
		}
		return nil, false
	}
}

func userField(u *model.PortalUser) func(string) (any, bool) {
	return u.FieldValue
}

type fakeProfiles struct{ db *memDB }

func (f *fakeProfiles) WithTx(tx *sqlx.Tx) repository.PortalProfileRepository { return f }

func (f *fakeProfiles) FindByID(ctx context.Context, id string) (*model.PortalProfile, error) {
	if p, ok := f.db.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeProfiles) FindByCustomer(ctx context.Context, customerID string) (*model.PortalProfile, error) {
	for _, p := range f.db.profiles {
		if p.CustomerID == customerID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeProfiles) List(ctx context.Context, filter model.Filter) ([]model.PortalProfile, error) {
	out := []model.PortalProfile{}
	for _, p := range f.db.profiles {
		ok, err := matches(filter, profileField(p))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompanyName != out[j].CompanyName {
			return out[i].CompanyName < out[j].CompanyName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeProfiles) Count(ctx context.Context, filter model.Filter) (int, error) {
	list, err := f.List(ctx, filter)
	return len(list), err
}

func (f *fakeProfiles) Create(ctx context.Context, params model.CreatePortalProfileParams) (*model.PortalProfile, error) {
	for _, p := range f.db.profiles {
		if p.CustomerID == params.CustomerID {
			return nil, fmt.Errorf("%w: portal_profiles_customer_uniq", repository.ErrDuplicate)
		}
	}
	p := &model.PortalProfile{
		ID:               f.db.nextID("prof"),
		CustomerID:       params.CustomerID,
		CompanyName:      params.CompanyName,
		CompanyLogo:      params.CompanyLogo,
		CommercialNumber: params.CommercialNumber,
		TaxID:            params.TaxID,
		Enabled:          params.Enabled,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	f.db.profiles[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) Save(ctx context.Context, profile *model.PortalProfile) (*model.PortalProfile, error) {
	if _, ok := f.db.profiles[profile.ID]; !ok {
		return nil, nil
	}
	cp := *profile
	cp.UpdatedAt = time.Now()
	f.db.profiles[profile.ID] = &cp
	out := cp
	return &out, nil
}

type fakeUsers struct{ db *memDB }

func (f *fakeUsers) WithTx(tx *sqlx.Tx) repository.PortalUserRepository { return f }

func copyUser(u *model.PortalUser) *model.PortalUser {
	cp := *u
	cp.Modules = append([]model.ModuleAssignment{}, u.Modules...)
	return &cp
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*model.PortalUser, error) {
	if u, ok := f.db.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (f *fakeUsers) FindCustomerByIdentity(ctx context.Context, identityID string) (string, error) {
	for _, u := range f.db.users {
		if u.IdentityID == identityID && u.Enabled {
			return u.CustomerID, nil
		}
	}
	return "", nil
}

func (f *fakeUsers) list(filter model.Filter) ([]*model.PortalUser, error) {
	var out []*model.PortalUser
	for _, u := range f.db.users {
		ok, err := matches(filter, userField(u))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListDetailed(ctx context.Context, filter model.Filter) ([]model.PortalUserDetail, error) {
	users, err := f.list(filter)
	if err != nil {
		return nil, err
	}
	out := []model.PortalUserDetail{}
	for _, u := range users {
		d := model.PortalUserDetail{PortalUser: *copyUser(u)}
		if identity, ok := f.db.identities[u.IdentityID]; ok {
			d.FullName = identity.FullName
			d.UserEmail = identity.Email
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Enabled != out[j].Enabled {
			return out[i].Enabled
		}
		return out[i].IdentityID < out[j].IdentityID
	})
	return out, nil
}

func (f *fakeUsers) Count(ctx context.Context, filter model.Filter) (int, error) {
	users, err := f.list(filter)
	return len(users), err
}

func (f *fakeUsers) CountEnabledByIdentity(ctx context.Context, identityID string) (int, error) {
	n := 0
	for _, u := range f.db.users {
		if u.IdentityID == identityID && u.Enabled {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) identityTaken(identityID, exceptID string) bool {
	for _, u := range f.db.users {
		if u.IdentityID == identityID && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (f *fakeUsers) Create(ctx context.Context, params model.CreatePortalUserParams) (*model.PortalUser, error) {
	if f.identityTaken(params.IdentityID, "") {
		return nil, fmt.Errorf("%w: portal_users_identity_uniq", repository.ErrDuplicate)
	}
	u := &model.PortalUser{
		ID:              f.db.nextID("pu"),
		CustomerID:      params.CustomerID,
		PortalProfileID: params.PortalProfileID,
		IdentityID:      params.IdentityID,
		Role:            params.Role,
		StartDate:       params.StartDate,
		Enabled:         params.Enabled,
		Modules:         params.Modules,
	}
	f.db.users[u.ID] = copyUser(u)
	return u, nil
}

func (f *fakeUsers) Save(ctx context.Context, user *model.PortalUser) (*model.PortalUser, error) {
	if _, ok := f.db.users[user.ID]; !ok {
		return nil, nil
	}
	if f.identityTaken(user.IdentityID, user.ID) {
		return nil, fmt.Errorf("%w: portal_users_identity_uniq", repository.ErrDuplicate)
	}
	f.db.users[user.ID] = copyUser(user)
	return copyUser(user), nil
}

func (f *fakeUsers) DisableByProfile(ctx context.Context, profileID string) ([]string, error) {
	out := []string{}
	for _, u := range f.db.users {
		if u.PortalProfileID != nil && *u.PortalProfileID == profileID {
			u.Enabled = false
			out = append(out, u.IdentityID)
		}
	}
	return out, nil
}

type fakeIdentities struct{ db *memDB }

func (f *fakeIdentities) WithTx(tx *sqlx.Tx) repository.IdentityRepository { return f }

func (f *fakeIdentities) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	if i, ok := f.db.identities[id]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeIdentities) LockForUpdate(ctx context.Context, id string) (*model.Identity, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeIdentities) Upsert(ctx context.Context, params model.CreateIdentityParams) (*model.Identity, error) {
	i, ok := f.db.identities[params.ID]
	if !ok {
		i = &model.Identity{ID: params.ID, Enabled: true}
		f.db.identities[params.ID] = i
	}
	i.Email = params.Email
	i.FullName = params.FullName
	if params.PasswordHash != "" {
		i.PasswordHash = params.PasswordHash
	}
	cp := *i
	return &cp, nil
}

func (f *fakeIdentities) Roles(ctx context.Context, id string) ([]string, error) {
	roles := []string{}
	for r := range f.db.roles[id] {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles, nil
}

func (f *fakeIdentities) HasRole(ctx context.Context, id string, role string) (bool, error) {
	return f.db.hasRole(id, role), nil
}

func (f *fakeIdentities) GrantRole(ctx context.Context, id string, role string) error {
	f.db.grant(id, role)
	return nil
}

func (f *fakeIdentities) RevokeRole(ctx context.Context, id string, role string) error {
	delete(f.db.roles[id], role)
	return nil
}

type fakeCustomers struct{ db *memDB }

func (f *fakeCustomers) WithTx(tx *sqlx.Tx) repository.CustomerRepository { return f }

func (f *fakeCustomers) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	if c, ok := f.db.customers[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeCustomers) Ensure(ctx context.Context, id string, name string) (*model.Customer, error) {
	if _, ok := f.db.customers[id]; !ok {
		f.db.addCustomer(id, name)
	}
	return f.FindByID(ctx, id)
}

type fakeSessions struct{ db *memDB }

func (f *fakeSessions) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	s, ok := f.db.sessions[tokenHash]
	if !ok || s.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	s := &model.Session{
		ID:         f.db.nextID("sess"),
		TokenHash:  params.TokenHash,
		IdentityID: params.IdentityID,
		ExpiresAt:  params.ExpiresAt,
		CreatedAt:  time.Now(),
	}
	f.db.sessions[params.TokenHash] = s
	return s, nil
}

func (f *fakeSessions) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	delete(f.db.sessions, tokenHash)
	return nil
}

func (f *fakeSessions) DeleteByIdentity(ctx context.Context, identityID string) (int64, error) {
	var n int64
	for k, s := range f.db.sessions {
		if s.IdentityID == identityID {
			delete(f.db.sessions, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for k, s := range f.db.sessions {
		if s.ExpiresAt.Before(time.Now()) {
			delete(f.db.sessions, k)
			n++
		}
	}
	return n, nil
}

// recorder counts metric events.
type recorder struct {
	mutations map[string]int
	cascaded  int
	roleSync  map[string]int
	denied    map[string]int
}

var _ metrics.Recorder = (*recorder)(nil)

func newRecorder() *recorder {
	return &recorder{mutations: map[string]int{}, roleSync: map[string]int{}, denied: map[string]int{}}
}

func (r *recorder) Mutation(op string)         { r.mutations[op]++ }
func (r *recorder) CascadeDisabled(n int)      { r.cascaded += n }
func (r *recorder) RoleSync(action string)     { r.roleSync[action]++ }
func (r *recorder) PermissionDenied(op string) { r.denied[op]++ }

type harness struct {
	db      *memDB
	svc     *PortalService
	metrics *recorder
}

func newHarness() *harness {
	db := newMemDB()
	st := db.store()
	rec := newRecorder()
	return &harness{
		db:      db,
		svc:     NewPortalService(db, st, access.NewPolicy(st.Users), rec),
		metrics: rec,
	}
}

var (
	adminActor = &model.Actor{ID: "admin@example.com", Roles: []string{model.RolePortalAdmin}}
	superActor = &model.Actor{ID: model.SuperuserID}
)
