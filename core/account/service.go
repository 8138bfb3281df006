package account

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lms/core"
	"github.com/trezcool/lms/core/token"
)

var (
	NowFunc = time.Now // mockable

	imageExts  = []string{"jpeg", "jpg", "png", "gif"}
	imagesPath = "profiles"
)

type (
	// Tokens issues and verifies session tokens.
	Tokens interface {
		Issue(accountID, email, role string) (string, error)
		Verify(tokenStr string) (token.Claims, error)
	}

	Service struct {
		store        Store
		hasher       Hasher
		tokens       Tokens
		files        core.FileStore
		mailSvc      core.EmailService
		validate     *validator.Validate
		logger       core.Logger
		maxImageSize int64
		dummyHash    []byte
	}
)

func NewService(
	conf *core.Config,
	store Store,
	tokens Tokens,
	files core.FileStore,
	mailSvc core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
) (*Service, error) {
	hasher := NewHasher(conf.BcryptCost)
	// compared against on unknown identifiers so both login failures cost the same
	dummyHash, err := hasher.Hash("masomo-dummy-password")
	if err != nil {
		return nil, errors.Wrap(err, "hashing dummy password")
	}
	return &Service{
		store:        store,
		hasher:       hasher,
		tokens:       tokens,
		files:        files,
		mailSvc:      mailSvc,
		validate:     validate,
		logger:       logger,
		maxImageSize: conf.Storage.MaxImageSize,
		dummyHash:    dummyHash,
	}, nil
}

func (svc *Service) issue(idt Identity) (AuthResult, error) {
	tok, err := svc.tokens.Issue(idt.Account.ID, idt.Account.Email, string(idt.Account.Role))
	if err != nil {
		return AuthResult{}, errors.Wrap(err, "issuing token")
	}
	return AuthResult{Token: tok, User: idt.Public()}, nil
}

func (svc *Service) checkImage(img core.Upload) error {
	ext := img.Ext()
	allowed := false
	for _, e := range imageExts {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed || (img.ContentType != "" && !strings.HasPrefix(img.ContentType, "image/")) {
		return core.NewValidationError(nil, core.FieldError{Field: "image", Error: "only jpeg, jpg, png and gif images are allowed"})
	}
	if svc.maxImageSize > 0 && img.Size > svc.maxImageSize {
		return core.NewValidationError(nil, core.FieldError{
			Field: "image",
			Error: fmt.Sprintf("image must not exceed %d bytes", svc.maxImageSize),
		})
	}
	return nil
}

// Register provisions a new account and its role-specific profile, then signs the caller in.
// An image saved before a failure is deleted again.
func (svc *Service) Register(ctx context.Context, na NewAccount, img *core.Upload) (AuthResult, error) {
	na.Clean()
	if err := svc.validate.Struct(na); err != nil {
		return AuthResult{}, err
	}
	if img != nil {
		if err := svc.checkImage(*img); err != nil {
			return AuthResult{}, err
		}
	}

	// fail fast, before paying for the hash
	if _, err := svc.store.FindByEmailOrUsername(ctx, na.Email, na.Username); err == nil {
		return AuthResult{}, ErrDuplicateAccount
	} else if errors.Cause(err) != ErrNotFound {
		return AuthResult{}, errors.Wrap(err, "checking duplicate account")
	}

	hash, err := svc.hasher.Hash(na.Password)
	if err != nil {
		return AuthResult{}, err
	}

	// sign before writing anything: a signing failure leaves no account behind
	accountID := uuid.New().String()
	tok, err := svc.tokens.Issue(accountID, na.Email, na.Role)
	if err != nil {
		return AuthResult{}, errors.Wrap(err, "issuing token")
	}

	var imageRef null.String
	committed := false
	if img != nil && Role(na.Role).HasProfile() {
		ref, err := svc.files.Save(ctx, imagesPath, *img)
		if err != nil {
			return AuthResult{}, errors.Wrap(err, "saving image")
		}
		imageRef = null.StringFrom(ref)
		defer func() {
			if committed {
				return
			}
			if err := svc.files.Delete(context.Background(), ref); err != nil {
				svc.logger.Error(fmt.Sprintf("deleting orphan image %s: %v", ref, err), err)
			}
		}()
	}

	newIdt := na.identity(hash, imageRef, NowFunc().UTC())
	newIdt.Account.ID = accountID
	idt, err := svc.store.InsertAccountAndProfile(ctx, newIdt)
	if err != nil {
		return AuthResult{}, errors.Wrap(err, "inserting account")
	}
	committed = true

	svc.notify(svc.welcomeMessage(idt))
	return AuthResult{Token: tok, User: idt.Public()}, nil
}

// Login signs in with an email or a username.
// Unknown identifiers and wrong passwords fail identically with ErrInvalidCredentials.
func (svc *Service) Login(ctx context.Context, lr LoginRequest) (AuthResult, error) {
	if err := svc.validate.Struct(lr); err != nil {
		return AuthResult{}, err
	}

	acc, err := svc.store.FindByIdentifier(ctx, lr.identifier())
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			svc.hasher.Verify(lr.Password, svc.dummyHash)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, errors.Wrap(err, "finding account")
	}
	if !svc.hasher.Verify(lr.Password, acc.PasswordHash) {
		return AuthResult{}, ErrInvalidCredentials
	}
	if !acc.IsActive {
		return AuthResult{}, ErrAccountInactive
	}

	if err := svc.store.TouchLastLogin(ctx, acc.ID, NowFunc().UTC()); err != nil {
		return AuthResult{}, errors.Wrap(err, "setting last login")
	}
	idt, err := svc.store.GetIdentity(ctx, acc.ID)
	if err != nil {
		return AuthResult{}, errors.Wrap(err, "getting identity")
	}
	return svc.issue(idt)
}

// Authenticate verifies a session token and loads the current identity from the store.
// Claims are never trusted alone: the active flag and the role are re-read on every call.
func (svc *Service) Authenticate(ctx context.Context, tokenStr string) (Identity, error) {
	claims, err := svc.tokens.Verify(tokenStr)
	if err != nil {
		return Identity{}, err
	}
	idt, err := svc.store.GetIdentity(ctx, claims.AccountID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Identity{}, ErrNotFound
		}
		return Identity{}, errors.Wrap(err, "getting identity")
	}
	if !idt.Account.IsActive {
		return Identity{}, ErrAccountInactive
	}
	return idt, nil
}

func (svc *Service) GetIdentity(ctx context.Context, id string) (Identity, error) {
	idt, err := svc.store.GetIdentity(ctx, id)
	if err != nil {
		return Identity{}, errors.Wrap(err, "getting identity")
	}
	return idt, nil
}

// PromoteToAdmin upgrades the authenticated teacher to admin after re-checking their password.
// The audit row, the role and the admin flag change together or not at all.
func (svc *Service) PromoteToAdmin(ctx context.Context, idt Identity, pr PromoteRequest) (AuthResult, error) {
	if err := svc.validate.Struct(pr); err != nil {
		return AuthResult{}, err
	}
	if idt.Account.Role != RoleTeacher || idt.Teacher == nil {
		return AuthResult{}, ErrForbidden
	}

	// re-read the hash: the context identity may predate a password change
	acc, err := svc.store.GetIdentity(ctx, idt.Account.ID)
	if err != nil {
		return AuthResult{}, errors.Wrap(err, "getting identity")
	}
	if !svc.hasher.Verify(pr.Password, acc.Account.PasswordHash) {
		return AuthResult{}, ErrInvalidCredentials
	}

	audit := RoleChangeAudit{
		AccountID:    idt.Account.ID,
		PreviousRole: acc.Account.Role,
		NewRole:      RoleAdmin,
		ChangedBy:    idt.Account.ID,
		Reason:       core.CleanString(pr.Reason),
		CreatedAt:    NowFunc().UTC(),
	}
	if audit.Reason == "" {
		audit.Reason = "self-service upgrade"
	}
	if err := svc.store.UpdateRole(ctx, audit); err != nil {
		return AuthResult{}, errors.Wrap(err, "updating role")
	}

	promoted, err := svc.store.GetIdentity(ctx, idt.Account.ID)
	if err != nil {
		return AuthResult{}, errors.Wrap(err, "getting identity")
	}
	svc.notify(svc.roleChangedMessage(promoted, audit))
	return svc.issue(promoted)
}

// SetActive activates or deactivates an account on behalf of an admin.
// Admins cannot deactivate themselves.
func (svc *Service) SetActive(ctx context.Context, actor Identity, id string, active bool) (Identity, error) {
	if !actor.IsAdmin() {
		return Identity{}, ErrForbidden
	}
	if actor.Account.ID == id && !active {
		return Identity{}, ErrForbidden
	}
	if err := svc.store.SetActive(ctx, id, active, NowFunc().UTC()); err != nil {
		return Identity{}, errors.Wrap(err, "setting active flag")
	}
	idt, err := svc.store.GetIdentity(ctx, id)
	if err != nil {
		return Identity{}, errors.Wrap(err, "getting identity")
	}
	return idt, nil
}

// ResetPassword sets a new password for the account matching the identifier, bypassing the policy.
// It backs the admin CLI only.
func (svc *Service) ResetPassword(ctx context.Context, identifier, pwd string) error {
	acc, err := svc.store.FindByIdentifier(ctx, core.CleanString(identifier, true /* lower */))
	if err != nil {
		return errors.Wrap(err, "finding account")
	}
	hash, err := svc.hasher.Hash(pwd)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.store.UpdatePassword(ctx, acc.ID, hash, NowFunc().UTC()), "updating password")
}

// Deactivate deactivates the account matching the identifier. It backs the admin CLI only.
func (svc *Service) Deactivate(ctx context.Context, identifier string) error {
	acc, err := svc.store.FindByIdentifier(ctx, core.CleanString(identifier, true /* lower */))
	if err != nil {
		return errors.Wrap(err, "finding account")
	}
	return errors.Wrap(svc.store.SetActive(ctx, acc.ID, false, NowFunc().UTC()), "deactivating account")
}

// CreateAdmin provisions an admin account with its teacher profile, skipping the password policy.
// It backs the admin CLI only.
func (svc *Service) CreateAdmin(ctx context.Context, email, username, firstName, lastName, pwd string) (Identity, error) {
	email = core.CleanString(email, true /* lower */)
	username = core.CleanString(username, true /* lower */)
	if err := svc.validate.Var(email, "required,email"); err != nil {
		return Identity{}, err
	}
	if _, err := svc.store.FindByEmailOrUsername(ctx, email, username); err == nil {
		return Identity{}, ErrDuplicateAccount
	} else if errors.Cause(err) != ErrNotFound {
		return Identity{}, errors.Wrap(err, "checking duplicate account")
	}
	hash, err := svc.hasher.Hash(pwd)
	if err != nil {
		return Identity{}, err
	}
	now := NowFunc().UTC()
	idt, err := svc.store.InsertAccountAndProfile(ctx, Identity{
		Account: Account{
			Email:        email,
			Username:     core.NullString(username),
			PasswordHash: hash,
			Role:         RoleAdmin,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Teacher: &TeacherProfile{
			FirstName: core.CleanString(firstName),
			LastName:  core.CleanString(lastName),
			IsAdmin:   true,
		},
	})
	if err != nil {
		return Identity{}, errors.Wrap(err, "inserting admin")
	}
	return idt, nil
}

func (svc *Service) ListRoleChanges(ctx context.Context, accountID string) ([]RoleChangeAudit, error) {
	audits, err := svc.store.ListRoleChanges(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "listing role changes")
	}
	return audits, nil
}

// Notifications

func (svc *Service) notify(msg *core.EmailMessage) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *Service) welcomeMessage(idt Identity) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: idt.Name(), Address: idt.Account.Email}},
		Subject:      "Welcome to Masomo",
		TemplateName: "welcome",
		TemplateData: struct {
			Name string
			Role Role
		}{Name: idt.Name(), Role: idt.Account.Role},
	}
}

func (svc *Service) roleChangedMessage(idt Identity, audit RoleChangeAudit) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: idt.Name(), Address: idt.Account.Email}},
		Subject:      "Your account role changed",
		TemplateName: "role_changed",
		TemplateData: struct {
			Name         string
			PreviousRole Role
			NewRole      Role
		}{Name: idt.Name(), PreviousRole: audit.PreviousRole, NewRole: audit.NewRole},
	}
}
