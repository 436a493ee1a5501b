package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

type ClientFilter struct {
	FirstName string
	Phone     string
}

type ClientService interface {
	Register(ctx context.Context, in domain.ClientInput) (domain.Client, error)
	Update(ctx context.Context, id int64, in domain.ClientInput) (domain.Client, error)
	Get(ctx context.Context, id int64) (domain.Client, error)
	// List filters by first name or phone when given, otherwise returns
	// every client sorted by first name.
	List(ctx context.Context, f ClientFilter) ([]domain.Client, error)
	Bookings(ctx context.Context, clientID int64) ([]domain.Booking, error)
	// Delete reassigns the client's bookings to the placeholder client and
	// returns how many were moved.
	Delete(ctx context.Context, id int64) (int64, error)
	// SendNotice mails a plain-text message to the client's address.
	SendNotice(ctx context.Context, id int64, subject, content string) error
}

// PlainSender is satisfied by *notify.Dispatcher.
type PlainSender interface {
	SendPlain(ctx context.Context, to, subject, content string) error
}

type clientService struct {
	store     repo.Store
	lifecycle *Lifecycle
	mail      PlainSender
}

// NewClientService accepts a nil mail sender; SendNotice then fails.
func NewClientService(store repo.Store, lifecycle *Lifecycle, mail PlainSender) ClientService {
	return &clientService{store: store, lifecycle: lifecycle, mail: mail}
}

func (s *clientService) Register(ctx context.Context, in domain.ClientInput) (domain.Client, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Client{}, err
	}
	c, err := s.store.Clients().Create(ctx, in)
	if err != nil {
		return domain.Client{}, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func (s *clientService) Update(ctx context.Context, id int64, in domain.ClientInput) (domain.Client, error) {
	if id == domain.PlaceholderClientID {
		return domain.Client{}, fmt.Errorf("%w: the placeholder client is read-only", domain.ErrValidation)
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Client{}, err
	}
	c, err := s.store.Clients().Update(ctx, id, in)
	if err != nil {
		return domain.Client{}, lookupErr("client", id, err)
	}
	return c, nil
}

func (s *clientService) Get(ctx context.Context, id int64) (domain.Client, error) {
	c, err := s.store.Clients().Get(ctx, id)
	if err != nil {
		return domain.Client{}, lookupErr("client", id, err)
	}
	return c, nil
}

func (s *clientService) List(ctx context.Context, f ClientFilter) ([]domain.Client, error) {
	switch {
	case strings.TrimSpace(f.FirstName) != "":
		return s.store.Clients().SearchByFirstName(ctx, strings.TrimSpace(f.FirstName))
	case strings.TrimSpace(f.Phone) != "":
		return s.store.Clients().SearchByPhone(ctx, domain.NormalizePhone(f.Phone))
	default:
		return s.store.Clients().ListSortedByFirstName(ctx)
	}
}

func (s *clientService) Bookings(ctx context.Context, clientID int64) ([]domain.Booking, error) {
	if _, err := s.store.Clients().Get(ctx, clientID); err != nil {
		return nil, lookupErr("client", clientID, err)
	}
	return s.store.Bookings().ListByClient(ctx, clientID)
}

func (s *clientService) Delete(ctx context.Context, id int64) (int64, error) {
	return s.lifecycle.ReassignAndDeleteClient(ctx, id)
}

var ErrMailUnavailable = errors.New("mail delivery is not configured")

func (s *clientService) SendNotice(ctx context.Context, id int64, subject, content string) error {
	subject, content = strings.TrimSpace(subject), strings.TrimSpace(content)
	if subject == "" || content == "" {
		return fmt.Errorf("%w: subject and content are required", domain.ErrValidation)
	}
	if s.mail == nil {
		return ErrMailUnavailable
	}

	c, err := s.store.Clients().Get(ctx, id)
	if err != nil {
		return lookupErr("client", id, err)
	}
	if c.Email == "" {
		return fmt.Errorf("%w: client %d has no email address", domain.ErrValidation, id)
	}

	if err := s.mail.SendPlain(ctx, c.Email, subject, content); err != nil {
		return fmt.Errorf("send notice to client %d: %w", id, err)
	}
	logger.InfoContext(ctx, "Client notice sent", "client_id", id)
	return nil
}
