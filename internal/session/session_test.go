package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Darkpool645/alex-backend/internal/auth"
	"github.com/Darkpool645/alex-backend/internal/billing"
	"github.com/Darkpool645/alex-backend/internal/logging"
	"github.com/Darkpool645/alex-backend/internal/metrics"
	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/operations"
	"github.com/Darkpool645/alex-backend/internal/payment"
	"github.com/Darkpool645/alex-backend/internal/repository/repositorytest"
)

type fakeGateway struct {
	calls int
	last  payment.Charge
	err   error
}

func (g *fakeGateway) Charge(ctx context.Context, charge payment.Charge) (payment.Receipt, error) {
	g.calls++
	g.last = charge
	if g.err != nil {
		return payment.Receipt{}, g.err
	}
	return payment.Receipt{Reference: "ch_test", AmountMinor: charge.AmountMinor, Currency: charge.Currency}, nil
}

type sentMessage struct {
	to   string
	code string
}

type fakeNotifier struct {
	mu              sync.Mutex
	welcome         []sentMessage
	verification    []sentMessage
	welcomeErr      error
	verificationErr error
}

func (n *fakeNotifier) SendWelcome(ctx context.Context, to, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcome = append(n.welcome, sentMessage{to: to, code: code})
	return n.welcomeErr
}

func (n *fakeNotifier) SendVerificationCode(ctx context.Context, to, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification = append(n.verification, sentMessage{to: to, code: code})
	return n.verificationErr
}

type fixture struct {
	svc      *Service
	store    *repositorytest.Memory
	gateway  *fakeGateway
	notifier *fakeNotifier
	issuer   *auth.Issuer
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", "alex-test", time.Hour)
	if err != nil {
		t.Fatalf("issuer error: %v", err)
	}
	f := &fixture{
		store:    repositorytest.New(),
		gateway:  &fakeGateway{},
		notifier: &fakeNotifier{},
		issuer:   issuer,
		clock:    time.Now().UTC(),
	}
	f.svc = NewService(f.store, issuer, f.gateway, f.notifier, billing.DefaultTable(),
		metrics.NewRecorder(prometheus.NewRegistry()), logging.Discard(), Options{})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) seedAdministrator(t *testing.T, email string) model.Account {
	t.Helper()
	ctx := context.Background()
	institution := model.Institution{ID: model.NewID(), Name: "Escuela", CreatedAt: f.clock}
	if err := f.store.CreateInstitution(ctx, institution); err != nil {
		t.Fatalf("seed institution: %v", err)
	}
	name := "Ana"
	admin := model.Account{
		ID:            model.NewID(),
		Name:          &name,
		Email:         &email,
		Role:          model.RoleAdministrator,
		InstitutionID: institution.ID,
		Status:        model.StatusActive,
		CreatedAt:     f.clock,
	}
	if err := f.store.CreateAccount(ctx, admin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return admin
}

func (f *fixture) seedCode(t *testing.T, accountID model.ID, code string, expiresAt time.Time) model.VerificationCode {
	t.Helper()
	vc := model.VerificationCode{
		ID:        model.NewID(),
		AccountID: accountID,
		Code:      code,
		ExpiresAt: expiresAt,
		CreatedAt: f.clock,
	}
	if err := f.store.CreateVerificationCode(context.Background(), vc); err != nil {
		t.Fatalf("seed code: %v", err)
	}
	return vc
}

func (f *fixture) seedTeacher(t *testing.T, institutionID model.ID, code string, status model.Status) model.Account {
	t.Helper()
	name := "Profesor " + code
	teacher := model.Account{
		ID:               model.NewID(),
		Name:             &name,
		Role:             model.RoleTeacher,
		InstitutionID:    institutionID,
		Status:           status,
		RegistrationCode: &code,
		CreatedAt:        f.clock,
	}
	if err := f.store.CreateAccount(context.Background(), teacher); err != nil {
		t.Fatalf("seed teacher: %v", err)
	}
	return teacher
}

func (f *fixture) seedExam(t *testing.T, teacherID model.ID, joinCode string, status model.Status, minutes int) model.Exam {
	t.Helper()
	exam := model.Exam{
		ID:              model.NewID(),
		TeacherID:       teacherID,
		Name:            "Algebra",
		DurationMinutes: minutes,
		JoinCode:        joinCode,
		Status:          status,
		CreatedAt:       f.clock,
	}
	if err := f.store.CreateExam(context.Background(), exam); err != nil {
		t.Fatalf("seed exam: %v", err)
	}
	return exam
}

func expectKind(t *testing.T, err error, kind operations.Kind) *operations.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	opErr := operations.As(err)
	if opErr.Kind != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, opErr.Kind, err)
	}
	return opErr
}

func registerInput() RegisterAdministratorInput {
	return RegisterAdministratorInput{
		Name:               "Ana Torres",
		Email:              "Ana@Example.test",
		InstitutionName:    "Colegio Central",
		InstitutionAddress: "Av. Juarez 1",
		InstitutionPhone:   "5555555555",
		PaymentMethod:      "stripe",
		PaymentToken:       "tok_visa",
		Country:            "MEX",
	}
}

func TestRegisterAdministratorMexico(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.RegisterAdministrator(context.Background(), registerInput())
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if f.gateway.last.Currency != "MXN" || f.gateway.last.AmountMinor != 19608 {
		t.Fatalf("expected MXN 19608 charge, got %+v", f.gateway.last)
	}
	if result.Currency != "MXN" || result.AmountMinor != 19608 {
		t.Fatalf("unexpected billing summary %s %d", result.Currency, result.AmountMinor)
	}

	claims, err := f.issuer.Verify(result.Token)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if claims.Role != string(model.RoleAdministrator) {
		t.Fatalf("expected administrator role, got %s", claims.Role)
	}
	if _, err := model.ParseID(result.Account.ID); err != nil {
		t.Fatalf("expected canonical account id, got %q", result.Account.ID)
	}
	if claims.UserID != result.Account.ID || claims.InstitutionID != result.Account.InstitutionID {
		t.Fatalf("token scope does not match account: %+v vs %+v", claims, result.Account)
	}
	if result.Account.Email != "ana@example.test" {
		t.Fatalf("expected normalized email, got %q", result.Account.Email)
	}

	state := f.store.Snapshot()
	if len(state.Institutions) != 1 || len(state.Accounts) != 1 || len(state.Codes) != 1 ||
		len(state.Subscriptions) != 1 || len(state.Payments) != 1 {
		t.Fatalf("expected one of each record, got %d/%d/%d/%d/%d", len(state.Institutions), len(state.Accounts),
			len(state.Codes), len(state.Subscriptions), len(state.Payments))
	}
	for _, sub := range state.Subscriptions {
		if !sub.EndsAt.Equal(sub.StartsAt.AddDate(1, 0, 0)) || sub.Status != "active" {
			t.Fatalf("unexpected subscription %+v", sub)
		}
	}
	for _, p := range state.Payments {
		if p.Status != "completed" || p.ProviderReference != "ch_test" || p.Currency != "MXN" {
			t.Fatalf("unexpected payment %+v", p)
		}
	}
	for _, code := range state.Codes {
		if !code.ExpiresAt.Equal(f.clock.Add(time.Hour)) {
			t.Fatalf("expected code to expire in one hour, got %s", code.ExpiresAt)
		}
		if len(f.notifier.welcome) != 1 || f.notifier.welcome[0].code != code.Code {
			t.Fatalf("expected welcome message with the stored code")
		}
	}
}

func TestRegisterAdministratorChargesEachEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RegisterAdministrator(ctx, registerInput()); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if f.gateway.last.IdempotencyKey != "ana@example.test" {
		t.Fatalf("expected charge keyed by the normalized email, got %q", f.gateway.last.IdempotencyKey)
	}

	other := registerInput()
	other.Email = "luis@example.test"
	if _, err := f.svc.RegisterAdministrator(ctx, other); err != nil {
		t.Fatalf("second registration: %v", err)
	}
	if f.gateway.calls != 2 {
		t.Fatalf("expected a separate charge per registration, got %d", f.gateway.calls)
	}
	if f.gateway.last.Token != "tok_visa" || f.gateway.last.IdempotencyKey != "luis@example.test" {
		t.Fatalf("unexpected second charge %+v", f.gateway.last)
	}
}

func TestRegisterAdministratorCodeFailureBeforeCharge(t *testing.T) {
	f := newFixture(t)
	f.svc.codes = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := f.svc.RegisterAdministrator(context.Background(), registerInput())
	opErr := expectKind(t, err, operations.KindInternal)
	if opErr.Code != operations.ErrServerError {
		t.Fatalf("expected server_error, got %s", opErr.Code)
	}
	if f.gateway.calls != 0 {
		t.Fatalf("expected no charge without a verification code")
	}
	if f.store.Commits+f.store.Rollbacks != 0 {
		t.Fatalf("expected no transaction to be opened")
	}
}

func TestRegisterAdministratorDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.seedAdministrator(t, "ana@example.test")

	_, err := f.svc.RegisterAdministrator(context.Background(), registerInput())
	opErr := expectKind(t, err, operations.KindConflict)
	if opErr.Code != operations.ErrAlreadyExists {
		t.Fatalf("expected already_exists, got %s", opErr.Code)
	}
	if f.gateway.calls != 0 {
		t.Fatalf("expected no charge for duplicate registration")
	}
}

func TestRegisterAdministratorPaymentFailed(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = payment.ErrDeclined

	_, err := f.svc.RegisterAdministrator(context.Background(), registerInput())
	opErr := expectKind(t, err, operations.KindUpstream)
	if opErr.Code != operations.ErrPaymentFailed {
		t.Fatalf("expected payment_failed, got %s", opErr.Code)
	}
	state := f.store.Snapshot()
	if len(state.Institutions)+len(state.Accounts)+len(state.Codes)+len(state.Subscriptions)+len(state.Payments) != 0 {
		t.Fatalf("expected no writes after a failed payment")
	}
	if f.store.Commits+f.store.Rollbacks != 0 {
		t.Fatalf("expected no transaction to be opened")
	}
	if len(f.notifier.welcome) != 0 {
		t.Fatalf("expected no welcome message")
	}
}

func TestRegisterAdministratorUnsupportedCurrency(t *testing.T) {
	f := newFixture(t)
	f.svc.rates = billing.Table{Countries: map[string]string{"JPN": "JPY"}, Rates: map[string]float64{"USD": 1}}
	in := registerInput()
	in.Country = "JPN"

	_, err := f.svc.RegisterAdministrator(context.Background(), in)
	opErr := expectKind(t, err, operations.KindValidation)
	if opErr.Code != operations.ErrUnsupportedCurrency {
		t.Fatalf("expected unsupported_currency, got %s", opErr.Code)
	}
	if f.gateway.calls != 0 {
		t.Fatalf("expected no charge")
	}
}

func TestRegisterAdministratorIsAtomic(t *testing.T) {
	steps := []string{"CreateInstitution", "CreateAccount", "CreateVerificationCode", "CreateSubscription", "CreatePayment"}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			f := newFixture(t)
			f.store.FailOn(step, errors.New("disk full"))

			_, err := f.svc.RegisterAdministrator(context.Background(), registerInput())
			opErr := expectKind(t, err, operations.KindPersistence)
			if opErr.Code != operations.ErrPersistenceFailed {
				t.Fatalf("expected persistence_failed, got %s", opErr.Code)
			}
			state := f.store.Snapshot()
			if len(state.Institutions)+len(state.Accounts)+len(state.Codes)+len(state.Subscriptions)+len(state.Payments) != 0 {
				t.Fatalf("expected rollback to leave no records")
			}
			if f.store.Rollbacks != 1 {
				t.Fatalf("expected one rollback, got %d", f.store.Rollbacks)
			}
			if len(f.notifier.welcome) != 0 {
				t.Fatalf("expected no welcome message after rollback")
			}
		})
	}
}

func TestRegisterAdministratorWelcomeFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.notifier.welcomeErr = errors.New("smtp down")

	result, err := f.svc.RegisterAdministrator(context.Background(), registerInput())
	if err != nil {
		t.Fatalf("expected success despite welcome failure, got %v", err)
	}
	if result.Token == "" {
		t.Fatalf("expected token")
	}
	if len(f.store.Snapshot().Accounts) != 1 {
		t.Fatalf("expected committed account")
	}
}

func TestRegisterAdministratorValidation(t *testing.T) {
	f := newFixture(t)
	in := registerInput()
	in.PaymentToken = ""

	_, err := f.svc.RegisterAdministrator(context.Background(), in)
	opErr := expectKind(t, err, operations.KindValidation)
	if opErr.Code != operations.ErrMissingFields {
		t.Fatalf("expected missing_fields, got %s", opErr.Code)
	}
}

func TestChallengeReplacesCodesAndAttempts(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	f.seedCode(t, admin.ID, "111111", f.clock.Add(time.Hour))
	f.seedCode(t, admin.ID, "222222", f.clock.Add(time.Hour))
	if err := f.store.CreateAttempt(context.Background(), admin.ID); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := f.store.IncrementAttempt(context.Background(), admin.ID, f.clock); err != nil {
			t.Fatalf("seed increment: %v", err)
		}
	}

	for round := 0; round < 2; round++ {
		if err := f.svc.ChallengeAdministratorLogin(context.Background(), ChallengeInput{Email: "ana@example.test"}); err != nil {
			t.Fatalf("challenge error: %v", err)
		}
		state := f.store.Snapshot()
		if len(state.Codes) != 1 {
			t.Fatalf("expected exactly one live code, got %d", len(state.Codes))
		}
		if _, ok := state.Attempts[admin.ID]; ok {
			t.Fatalf("expected attempt counter to be reset")
		}
		sent := f.notifier.verification[len(f.notifier.verification)-1]
		for _, code := range state.Codes {
			if code.Code != sent.code || code.Verified {
				t.Fatalf("expected stored code to match mailed code")
			}
		}
	}
}

func TestChallengeUnknownAccount(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ChallengeAdministratorLogin(context.Background(), ChallengeInput{Email: "ghost@example.test"})
	expectKind(t, err, operations.KindNotFound)
	if len(f.notifier.verification) != 0 {
		t.Fatalf("expected no message for unknown account")
	}
}

func TestChallengeNotificationFailure(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	old := f.seedCode(t, admin.ID, "111111", f.clock.Add(time.Hour))
	f.notifier.verificationErr = errors.New("smtp down")

	err := f.svc.ChallengeAdministratorLogin(context.Background(), ChallengeInput{Email: "ana@example.test"})
	opErr := expectKind(t, err, operations.KindUpstream)
	if opErr.Code != operations.ErrNotificationFailed {
		t.Fatalf("expected notification_failed, got %s", opErr.Code)
	}
	state := f.store.Snapshot()
	if _, ok := state.Codes[old.ID]; !ok || len(state.Codes) != 1 {
		t.Fatalf("expected ledger to stay untouched")
	}
}

func TestVerifyAttemptSequence(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	f.seedCode(t, admin.ID, "482913", f.clock.Add(time.Hour))
	ctx := context.Background()

	for _, remaining := range []int{2, 1, 0} {
		_, err := f.svc.VerifyAdministratorCode(ctx, VerifyInput{Email: "ana@example.test", Code: "000000"})
		opErr := expectKind(t, err, operations.KindInvalidCode)
		if opErr.Remaining != remaining {
			t.Fatalf("expected %d remaining attempts, got %d", remaining, opErr.Remaining)
		}
	}

	_, err := f.svc.VerifyAdministratorCode(ctx, VerifyInput{Email: "ana@example.test", Code: "482913"})
	expectKind(t, err, operations.KindAttemptsExceeded)

	attempt, _ := f.store.GetAttempt(ctx, admin.ID)
	if attempt.Attempts != 3 {
		t.Fatalf("expected counter to stay at 3, got %d", attempt.Attempts)
	}
}

func TestVerifyCounterIncreasesThenResets(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	vc := f.seedCode(t, admin.ID, "482913", f.clock.Add(time.Hour))
	ctx := context.Background()

	if _, err := f.svc.VerifyAdministratorCode(ctx, VerifyInput{Email: "ana@example.test", Code: "999999"}); err == nil {
		t.Fatalf("expected invalid code")
	}
	attempt, _ := f.store.GetAttempt(ctx, admin.ID)
	if attempt.Attempts != 1 || attempt.LastAttemptAt == nil {
		t.Fatalf("expected one stamped attempt, got %+v", attempt)
	}

	result, err := f.svc.VerifyAdministratorCode(ctx, VerifyInput{Email: "ana@example.test", Code: "482913"})
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	attempt, _ = f.store.GetAttempt(ctx, admin.ID)
	if attempt.Attempts != 0 {
		t.Fatalf("expected counter reset, got %d", attempt.Attempts)
	}
	if !f.store.Snapshot().Codes[vc.ID].Verified {
		t.Fatalf("expected code to be consumed")
	}

	claims, err := f.issuer.Verify(result.Token)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if claims.Role != "administrator" || claims.UserID != admin.ID.String() || claims.InstitutionID != admin.InstitutionID.String() {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if d := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); d != time.Hour {
		t.Fatalf("expected one hour lifetime, got %s", d)
	}

	_, err = f.svc.VerifyAdministratorCode(ctx, VerifyInput{Email: "ana@example.test", Code: "482913"})
	expectKind(t, err, operations.KindInvalidCode)
}

// interleavingStore runs next between looking up a code and returning it,
// the window in which a concurrent request could redeem the same code.
type interleavingStore struct {
	*repositorytest.Memory
	next func()
}

func (s *interleavingStore) FindVerificationCode(ctx context.Context, accountID model.ID, code string) (model.VerificationCode, error) {
	found, err := s.Memory.FindVerificationCode(ctx, accountID, code)
	if run := s.next; run != nil {
		s.next = nil
		run()
	}
	return found, err
}

func TestVerifyCodeRedeemedOnce(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	f.seedCode(t, admin.ID, "482913", f.clock.Add(time.Hour))
	ctx := context.Background()
	in := VerifyInput{Email: "ana@example.test", Code: "482913"}

	store := &interleavingStore{Memory: f.store}
	f.svc.store = store
	var innerErr error
	inner := false
	store.next = func() {
		inner = true
		_, innerErr = f.svc.VerifyAdministratorCode(ctx, in)
	}

	_, outerErr := f.svc.VerifyAdministratorCode(ctx, in)
	if !inner {
		t.Fatalf("expected the second verification to run")
	}
	if innerErr != nil {
		t.Fatalf("expected the first redemption to succeed, got %v", innerErr)
	}
	opErr := expectKind(t, outerErr, operations.KindInvalidCode)
	if opErr.Code != operations.ErrInvalidCode || opErr.Remaining != 3 {
		t.Fatalf("expected invalid_code with a fresh counter, got %s (%d remaining)", opErr.Code, opErr.Remaining)
	}
	if f.store.Commits != 1 || f.store.Rollbacks != 1 {
		t.Fatalf("expected one commit and one rollback, got %d/%d", f.store.Commits, f.store.Rollbacks)
	}
}

func TestVerifyExpiredNeverIncrements(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	f.seedCode(t, admin.ID, "482913", f.clock.Add(time.Hour))
	f.clock = f.clock.Add(61 * time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.VerifyAdministratorCode(ctx, VerifyInput{Email: "ana@example.test", Code: "482913"})
		expectKind(t, err, operations.KindExpired)
	}
	attempt, err := f.store.GetAttempt(ctx, admin.ID)
	if err != nil {
		t.Fatalf("expected lazily created attempt row: %v", err)
	}
	if attempt.Attempts != 0 {
		t.Fatalf("expected expired codes to leave the counter at 0, got %d", attempt.Attempts)
	}
}

func TestVerifyWithoutIssuedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyAdministratorCode(ctx, VerifyInput{Email: "ghost@example.test", Code: "000000"})
	expectKind(t, err, operations.KindNotFound)

	f.seedAdministrator(t, "ana@example.test")
	_, err = f.svc.VerifyAdministratorCode(ctx, VerifyInput{Email: "ana@example.test", Code: "000000"})
	opErr := expectKind(t, err, operations.KindInvalidCode)
	if opErr.Remaining != 2 {
		t.Fatalf("expected 2 remaining attempts, got %d", opErr.Remaining)
	}
}

func TestVerifyIgnoresNonAdministrators(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	email := "teacher@example.test"
	code := "abc123"
	teacher := model.Account{ID: model.NewID(), Email: &email, Role: model.RoleTeacher, InstitutionID: admin.InstitutionID,
		Status: model.StatusActive, RegistrationCode: &code}
	if err := f.store.CreateAccount(context.Background(), teacher); err != nil {
		t.Fatalf("seed teacher: %v", err)
	}
	_, err := f.svc.VerifyAdministratorCode(context.Background(), VerifyInput{Email: email, Code: "000000"})
	expectKind(t, err, operations.KindNotFound)
}

func TestLoginTeacher(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	teacher := f.seedTeacher(t, admin.InstitutionID, "k3x9pq", model.StatusActive)
	f.seedTeacher(t, admin.InstitutionID, "zzzz11", model.StatusInactive)
	ctx := context.Background()

	result, err := f.svc.LoginTeacher(ctx, TeacherLoginInput{Code: "k3x9pq"})
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	claims, err := f.issuer.Verify(result.Token)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if claims.Role != "teacher" || claims.UserID != teacher.ID.String() || claims.InstitutionID != admin.InstitutionID.String() {
		t.Fatalf("unexpected claims %+v", claims)
	}

	_, err = f.svc.LoginTeacher(ctx, TeacherLoginInput{Code: "nope00"})
	expectKind(t, err, operations.KindInvalidCode)

	_, err = f.svc.LoginTeacher(ctx, TeacherLoginInput{Code: "zzzz11"})
	expectKind(t, err, operations.KindForbidden)
}

func TestJoinExamTokenLivesForExamDuration(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	teacher := f.seedTeacher(t, admin.InstitutionID, "k3x9pq", model.StatusActive)
	exam := f.seedExam(t, teacher.ID, "QZ12AB", model.StatusActive, 45)

	joinedAt := time.Now()
	result, err := f.svc.JoinExam(context.Background(), JoinExamInput{ExamCode: "qz12ab"})
	if err != nil {
		t.Fatalf("join error: %v", err)
	}
	if result.ExamID != exam.ID.String() {
		t.Fatalf("expected exam id %s, got %s", exam.ID, result.ExamID)
	}
	expected := joinedAt.Add(45 * time.Minute)
	if diff := result.ExpiresAt.Sub(expected); diff < -time.Second || diff > time.Second {
		t.Fatalf("expected expiry near %s, got %s", expected, result.ExpiresAt)
	}

	claims, err := f.issuer.Verify(result.Token)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if claims.Role != "student" || claims.InstitutionID != admin.InstitutionID.String() {
		t.Fatalf("unexpected claims %+v", claims)
	}
	studentID, err := model.ParseID(claims.UserID)
	if err != nil {
		t.Fatalf("expected canonical student id: %v", err)
	}
	student, ok := f.store.Snapshot().Accounts[studentID]
	if !ok || student.Role != model.RoleStudent || student.InstitutionID != admin.InstitutionID || student.Email != nil {
		t.Fatalf("unexpected student record %+v", student)
	}
}

func TestJoinInactiveExamCreatesNoStudent(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	teacher := f.seedTeacher(t, admin.InstitutionID, "k3x9pq", model.StatusActive)
	f.seedExam(t, teacher.ID, "QZ12AB", model.StatusInactive, 45)
	before := len(f.store.Snapshot().Accounts)

	_, err := f.svc.JoinExam(context.Background(), JoinExamInput{ExamCode: "QZ12AB"})
	expectKind(t, err, operations.KindForbidden)
	if len(f.store.Snapshot().Accounts) != before {
		t.Fatalf("expected no student account for an inactive exam")
	}
}

func TestJoinExamFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.JoinExam(ctx, JoinExamInput{ExamCode: "NOPE00"})
	expectKind(t, err, operations.KindInvalidCode)

	f.seedExam(t, model.ID{}, "ORPHAN", model.StatusActive, 30)
	_, err = f.svc.JoinExam(ctx, JoinExamInput{ExamCode: "ORPHAN"})
	expectKind(t, err, operations.KindIntegrity)

	f.seedExam(t, model.NewID(), "GHOST1", model.StatusActive, 30)
	_, err = f.svc.JoinExam(ctx, JoinExamInput{ExamCode: "GHOST1"})
	expectKind(t, err, operations.KindIntegrity)

	if len(f.store.Snapshot().Accounts) != 0 {
		t.Fatalf("expected no student accounts")
	}
}

func TestRegisterTeacher(t *testing.T) {
	f := newFixture(t)
	admin := f.seedAdministrator(t, "ana@example.test")
	ctx := context.Background()

	teacher, err := f.svc.RegisterTeacher(ctx, RegisterTeacherInput{Name: "Luis", InstitutionID: admin.InstitutionID})
	if err != nil {
		t.Fatalf("register teacher error: %v", err)
	}
	if len(teacher.RegistrationCode) != 6 {
		t.Fatalf("expected 6 character registration code, got %q", teacher.RegistrationCode)
	}

	_, err = f.svc.RegisterTeacher(ctx, RegisterTeacherInput{Name: "Luis", InstitutionID: admin.InstitutionID})
	expectKind(t, err, operations.KindConflict)

	_, err = f.svc.RegisterTeacher(ctx, RegisterTeacherInput{Name: "Luis", InstitutionID: model.NewID()})
	expectKind(t, err, operations.KindNotFound)

	login, err := f.svc.LoginTeacher(ctx, TeacherLoginInput{Code: teacher.RegistrationCode})
	if err != nil {
		t.Fatalf("login with fresh registration code: %v", err)
	}
	if login.Account.Name != "Luis" {
		t.Fatalf("unexpected account %+v", login.Account)
	}

	teachers, err := f.svc.ListTeachers(ctx, admin.InstitutionID)
	if err != nil {
		t.Fatalf("list teachers: %v", err)
	}
	if len(teachers) != 1 || teachers[0].ID != teacher.ID {
		t.Fatalf("unexpected teachers %+v", teachers)
	}

	f.seedTeacher(t, model.NewID(), "zz9999", model.StatusActive)
	total, err := f.svc.CountTeachers(ctx, admin.InstitutionID)
	if err != nil {
		t.Fatalf("count teachers: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one teacher in the institution, got %d", total)
	}
}
