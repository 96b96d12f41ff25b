package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Skotchmaster/owner_shop/internal/events"
	"github.com/Skotchmaster/owner_shop/internal/hash"
	"github.com/Skotchmaster/owner_shop/internal/logging"
	"github.com/Skotchmaster/owner_shop/internal/models"
	"github.com/Skotchmaster/owner_shop/internal/repo"
	"github.com/Skotchmaster/owner_shop/internal/storage"
	"github.com/Skotchmaster/owner_shop/internal/tokens"
	"github.com/Skotchmaster/owner_shop/internal/transport"
	"github.com/Skotchmaster/owner_shop/internal/validation"
)

const sideEffectTimeout = 5 * time.Second

type TokenIssuer interface {
	Generate(p tokens.Principal) (string, error)
}

// Upload is a picture file received with a registration.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type OwnerService struct {
	Repo      repo.Repository
	Tokens    TokenIssuer
	Pictures  storage.PictureStore
	Events    events.Publisher
	Validator *validation.Validator
	Topic     string
	Role      string
}

func (s *OwnerService) Register(ctx context.Context, req transport.RegisterRequest, pic *Upload) (string, *models.Owner, error) {
	l := logging.FromContext(ctx).With(zap.String("svc", "owner.register"))

	if pic != nil {
		req.Picture = pic.Filename
	}
	msgs := s.Validator.Struct(req)
	var pictureName string
	if pic != nil && pic.Filename != "" {
		name, err := storage.NewName(pic.Filename)
		if err != nil {
			msgs = append(msgs, err.Error())
		}
		pictureName = name
	}
	if len(msgs) > 0 {
		return "", nil, invalid(msgs...)
	}

	if _, err := s.Repo.GetOwnerByEmail(ctx, req.Email); err == nil {
		return "", nil, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return "", nil, fmt.Errorf("lookup owner: %w", err)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return "", nil, err
	}

	if err := s.Pictures.Save(ctx, pictureName, pic.Body, pic.Size); err != nil {
		return "", nil, fmt.Errorf("save picture: %w", err)
	}

	owner := &models.Owner{
		Name:     req.Name,
		Email:    req.Email,
		Password: pwHash,
		Address:  req.Address,
		Picture:  pictureName,
		Role:     s.Role,
	}
	if err := s.Repo.CreateOwnerIfNotExists(ctx, owner); err != nil {
		if rmErr := s.Pictures.Remove(context.WithoutCancel(ctx), pictureName); rmErr != nil {
			l.Warn("picture_cleanup_failed", zap.String("picture", pictureName), zap.Error(rmErr))
		}
		if errors.Is(err, repo.ErrDuplicate) {
			return "", nil, ErrEmailTaken
		}
		return "", nil, fmt.Errorf("create owner: %w", err)
	}

	token, err := s.Tokens.Generate(tokens.Principal{ID: owner.ID, Role: owner.Role})
	if err != nil {
		return "", nil, err
	}

	s.publish(ctx, owner.ID, events.OwnerEvent{
		Type:    events.OwnerRegistered,
		OwnerID: owner.ID,
		Name:    owner.Name,
		Email:   owner.Email,
		At:      time.Now().UTC(),
	})

	l.Info("owner_registered", zap.String("owner_id", owner.ID))
	return token, owner, nil
}

// Login checks the supplied plaintext against the stored hash.
func (s *OwnerService) Login(ctx context.Context, req transport.LoginRequest) (string, error) {
	if msgs := s.Validator.Struct(req); len(msgs) > 0 {
		return "", invalid(msgs...)
	}

	owner, err := s.Repo.GetOwnerByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lookup owner: %w", err)
	}

	ok, err := hash.ComparePassword(req.Password, owner.Password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return s.Tokens.Generate(tokens.Principal{ID: owner.ID, Role: owner.Role})
}

func (s *OwnerService) Profile(ctx context.Context, ownerID string) (*models.Owner, error) {
	owner, err := s.Repo.GetOwnerByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup owner: %w", err)
	}
	return owner, nil
}

func (s *OwnerService) OpenPicture(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.Pictures.Open(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open picture: %w", err)
	}
	return rc, nil
}

func (s *OwnerService) publish(ctx context.Context, key string, ev events.OwnerEvent) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.Events.PublishEvent(pubCtx, s.Topic, key, ev); err != nil {
		logging.FromContext(ctx).Error("publish_failed",
			zap.String("topic", s.Topic), zap.String("type", ev.Type), zap.Error(err))
	}
}
