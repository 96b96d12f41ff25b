package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/owner_shop/internal/events"
	"github.com/Skotchmaster/owner_shop/internal/hash"
	"github.com/Skotchmaster/owner_shop/internal/models"
	"github.com/Skotchmaster/owner_shop/internal/repo"
	"github.com/Skotchmaster/owner_shop/internal/search"
	"github.com/Skotchmaster/owner_shop/internal/storage"
	"github.com/Skotchmaster/owner_shop/internal/tokens"
	"github.com/Skotchmaster/owner_shop/internal/transport"
	"github.com/Skotchmaster/owner_shop/internal/validation"
)

type recordedEvent struct {
	Topic string
	Key   string
	Event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (f *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{Topic: topic, Key: key, Event: event})
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

type fakeIndexer struct {
	indexed map[string]models.Product
	deleted []string
	err     error
}

func (f *fakeIndexer) IndexProduct(_ context.Context, p models.Product) error {
	f.indexed[p.ID] = p
	return f.err
}

func (f *fakeIndexer) DeleteProduct(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

type failingStore struct {
	storage.PictureStore
	removed []string
}

func (f *failingStore) Remove(ctx context.Context, name string) error {
	f.removed = append(f.removed, name)
	return f.PictureStore.Remove(ctx, name)
}

type brokenRepo struct {
	repo.Repository
}

func (brokenRepo) CreateOwnerIfNotExists(context.Context, *models.Owner) error {
	return errors.New("disk full")
}

type testEnv struct {
	DB       *gorm.DB
	Repo     *repo.GormRepo
	Tokens   *tokens.Manager
	Store    *storage.LocalStore
	Events   *fakePublisher
	Index    *fakeIndexer
	Owners   *OwnerService
	Products *ProductService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Owner{}, &models.Product{}))

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		DB:     db,
		Repo:   repo.NewGormRepo(db),
		Tokens: tokens.NewManager([]byte("test-jwt-secret"), time.Hour),
		Store:  store,
		Events: &fakePublisher{},
		Index:  &fakeIndexer{indexed: map[string]models.Product{}},
	}
	v := validation.MustNew()
	env.Owners = &OwnerService{
		Repo:      env.Repo,
		Tokens:    env.Tokens,
		Pictures:  store,
		Events:    env.Events,
		Validator: v,
		Topic:     "owner_events",
		Role:      "owner",
	}
	env.Products = &ProductService{
		Repo:      env.Repo,
		Index:     env.Index,
		Searcher:  search.RepoSearcher{Repo: env.Repo},
		Events:    env.Events,
		Validator: v,
		Topic:     "product_events",
	}
	return env
}

func picture(name string) *Upload {
	return &Upload{Filename: name, Size: 3, Body: bytes.NewReader([]byte("img"))}
}

func validRegister() transport.RegisterRequest {
	return transport.RegisterRequest{Name: "A", Email: "a@x.com", Password: "secret1", Address: "x"}
}

func (env *testEnv) register(t *testing.T, email string) *models.Owner {
	t.Helper()
	req := validRegister()
	req.Email = email
	_, owner, err := env.Owners.Register(context.Background(), req, picture("me.png"))
	require.NoError(t, err)
	return owner
}

func ptr[T any](v T) *T { return &v }

func TestOwnerService_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, owner, err := env.Owners.Register(ctx, validRegister(), picture("me.png"))
	require.NoError(t, err)

	claims, err := env.Tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, claims.OwnerID)
	assert.Equal(t, "owner", claims.Role)

	stored, err := env.Repo.GetOwnerByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.Password)
	ok, err := hash.ComparePassword("secret1", stored.Password)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := env.Owners.OpenPicture(ctx, stored.Picture)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "img", string(data))

	require.Len(t, env.Events.events, 1)
	assert.Equal(t, "owner_events", env.Events.events[0].Topic)
	assert.Equal(t, events.OwnerRegistered, env.Events.events[0].Event.(events.OwnerEvent).Type)
}

func TestOwnerService_Register_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com")

	req := validRegister()
	req.Name = "Other"
	_, _, err := env.Owners.Register(context.Background(), req, picture("other.png"))
	require.ErrorIs(t, err, ErrEmailTaken)

	var count int64
	require.NoError(t, env.DB.Model(&models.Owner{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestOwnerService_Register_ValidationListsEveryField(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.Owners.Register(context.Background(), transport.RegisterRequest{Email: "bad", Password: "123"}, nil)
	require.ErrorIs(t, err, ErrValidation)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []string{
		"name is a required field",
		"email must be a valid email address",
		"password must be at least 6 characters in length",
		"address is a required field",
		"picture is a required field",
	}, ve.Messages)
}

func TestOwnerService_Register_RejectsNonImage(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.Owners.Register(context.Background(), validRegister(), picture("run.exe"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{storage.ErrUnsupportedType.Error()}, ve.Messages)
}

func TestOwnerService_Register_RemovesPictureWhenCreateFails(t *testing.T) {
	env := newTestEnv(t)
	store := &failingStore{PictureStore: env.Store}
	env.Owners.Pictures = store
	env.Owners.Repo = brokenRepo{Repository: env.Repo}

	_, _, err := env.Owners.Register(context.Background(), validRegister(), picture("me.png"))
	require.Error(t, err)
	require.Len(t, store.removed, 1)

	_, err = env.Store.Open(context.Background(), store.removed[0])
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOwnerService_Register_EventFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.Events.err = errors.New("broker down")

	token, _, err := env.Owners.Register(context.Background(), validRegister(), picture("me.png"))
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestOwnerService_Register_TokenConfigError(t *testing.T) {
	env := newTestEnv(t)
	env.Owners.Tokens = tokens.NewManager(nil, time.Hour)

	_, _, err := env.Owners.Register(context.Background(), validRegister(), picture("me.png"))
	var te *tokens.TokenError
	require.ErrorAs(t, err, &te)
}

func TestOwnerService_Login(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "a@x.com")
	ctx := context.Background()

	token, err := env.Owners.Login(ctx, transport.LoginRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	claims, err := env.Tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, claims.OwnerID)

	_, err = env.Owners.Login(ctx, transport.LoginRequest{Email: "a@x.com", Password: "wrong-password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.Owners.Login(ctx, transport.LoginRequest{Email: "nobody@x.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.Owners.Login(ctx, transport.LoginRequest{Email: "not-an-email"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestOwnerService_Login_MalformedStoredHash(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "a@x.com")
	require.NoError(t, env.DB.Model(&models.Owner{}).Where("id = ?", owner.ID).Update("password", "plain").Error)

	_, err := env.Owners.Login(context.Background(), transport.LoginRequest{Email: "a@x.com", Password: "secret1"})
	var ce *hash.ComparisonError
	require.ErrorAs(t, err, &ce)
}

func TestOwnerService_Profile(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "a@x.com")

	got, err := env.Owners.Profile(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	_, err = env.Owners.Profile(context.Background(), "gone")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.Owners.OpenPicture(context.Background(), "missing.png")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProductService_CRUD(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "ann@x.com")
	ctx := context.Background()

	_, err := env.Products.List(ctx, ann.ID)
	require.ErrorIs(t, err, ErrNotFound)

	p, err := env.Products.Create(ctx, ann.ID, transport.CreateProductRequest{
		Name: "Lamp", Details: "desk", Price: ptr(10.5), Stock: ptr(0),
		OwnerID: "someone-else",
	})
	require.NoError(t, err)
	assert.Equal(t, ann.ID, p.OwnerID)
	assert.Contains(t, env.Index.indexed, p.ID)

	items, err := env.Products.List(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	got, err := env.Products.Get(ctx, ann.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", got.Name)

	updated, err := env.Products.Update(ctx, ann.ID, p.ID, transport.PatchProductRequest{Stock: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Stock)
	assert.Equal(t, "Lamp", updated.Name)

	require.NoError(t, env.Products.Delete(ctx, ann.ID, p.ID))
	assert.Equal(t, []string{p.ID}, env.Index.deleted)
	_, err = env.Products.Get(ctx, ann.ID, p.ID)
	require.ErrorIs(t, err, ErrNotFound)

	var kinds []string
	for _, e := range env.Events.events {
		if pe, ok := e.Event.(events.ProductEvent); ok {
			kinds = append(kinds, pe.Type)
			assert.Equal(t, "product_events", e.Topic)
		}
	}
	assert.Equal(t, []string{events.ProductCreated, events.ProductUpdated, events.ProductDeleted}, kinds)
}

func TestProductService_OwnershipIsEnforced(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "ann@x.com")
	bob := env.register(t, "bob@x.com")
	ctx := context.Background()

	p, err := env.Products.Create(ctx, ann.ID, transport.CreateProductRequest{
		Name: "Lamp", Details: "desk", Price: ptr(1.0), Stock: ptr(1),
	})
	require.NoError(t, err)

	_, err = env.Products.Get(ctx, bob.ID, p.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.Products.Update(ctx, bob.ID, p.ID, transport.PatchProductRequest{Name: ptr("Mine")})
	require.ErrorIs(t, err, ErrForbidden)

	require.ErrorIs(t, env.Products.Delete(ctx, bob.ID, p.ID), ErrForbidden)

	_, err = env.Products.List(ctx, bob.ID)
	require.ErrorIs(t, err, ErrNotFound)

	still, err := env.Products.Get(ctx, ann.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", still.Name)
}

func TestProductService_Validation(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "ann@x.com")
	ctx := context.Background()

	_, err := env.Products.Create(ctx, ann.ID, transport.CreateProductRequest{Price: ptr(-1.0)})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []string{
		"name is a required field",
		"details is a required field",
		"price must be 0 or greater",
		"stock is a required field",
	}, ve.Messages)

	_, err = env.Products.Update(ctx, ann.ID, "any", transport.PatchProductRequest{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.Products.Update(ctx, ann.ID, "any", transport.PatchProductRequest{Stock: ptr(-3)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.Products.Update(ctx, ann.ID, "missing", transport.PatchProductRequest{Stock: ptr(3)})
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, env.Products.Delete(ctx, ann.ID, "missing"), ErrNotFound)
}

func TestProductService_Search(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "ann@x.com")
	ctx := context.Background()

	for _, name := range []string{"Red lamp", "Blue lamp", "Chair"} {
		_, err := env.Products.Create(ctx, ann.ID, transport.CreateProductRequest{
			Name: name, Details: "d", Price: ptr(1.0), Stock: ptr(1),
		})
		require.NoError(t, err)
	}

	total, items, err := env.Products.Search(ctx, ann.ID, " lamp ", 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 1)

	_, items, err = env.Products.Search(ctx, ann.ID, "sofa", 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	_, _, err = env.Products.Search(ctx, ann.ID, "   ", 1, 10)
	require.ErrorIs(t, err, ErrValidation)
}

func TestProductService_SideEffectFailuresAreNotFatal(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "ann@x.com")
	env.Events.err = errors.New("broker down")
	env.Index.err = errors.New("es down")

	_, err := env.Products.Create(context.Background(), ann.ID, transport.CreateProductRequest{
		Name: "Lamp", Details: "desk", Price: ptr(1.0), Stock: ptr(1),
	})
	require.NoError(t, err)
}

func TestProductService_Create_UnknownOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Products.Create(ctx, "no-such-owner", transport.CreateProductRequest{
		Name: "Lamp", Details: "desk", Price: ptr(1.0), Stock: ptr(1),
	})
	require.ErrorIs(t, err, ErrOwnerNotFound)

	_, err = env.Products.List(ctx, "no-such-owner")
	require.ErrorIs(t, err, ErrNotFound)

	var n int64
	require.NoError(t, env.DB.Model(&models.Product{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Empty(t, env.Index.indexed)
	assert.Empty(t, env.Events.events)
}
