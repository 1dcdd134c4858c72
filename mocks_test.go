package goidentity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wizardcld/goidentity/rbac"
)

type mockDirectory struct {
	mu       sync.Mutex
	subjects map[string]SubjectRecord
	byEmail  map[string]string
	roles    map[string][]string
	grants   map[string][]string

	createErr error
	updateErr error

	createCalls         int
	updatePasswordCalls int
	updateEmailCalls    int
	updateStatusCalls   int
	grantsForCalls      int
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		subjects: map[string]SubjectRecord{},
		byEmail:  map[string]string{},
		roles:    map[string][]string{},
		grants: map[string][]string{
			"admin":     {"user.update", "user.delete", "role.update"},
			"developer": {"user.update", "deploy.create"},
			"viewer":    {"user.read"},
		},
	}
}

func (m *mockDirectory) SubjectByEmail(_ context.Context, email string) (SubjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[email]
	if !ok {
		return SubjectRecord{}, ErrEntityNotFound
	}
	return m.subjects[id], nil
}

func (m *mockDirectory) SubjectByID(_ context.Context, id string) (SubjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subject, ok := m.subjects[id]
	if !ok {
		return SubjectRecord{}, ErrEntityNotFound
	}
	return subject, nil
}

func (m *mockDirectory) CreateSubject(_ context.Context, in CreateSubjectInput) (SubjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.createErr != nil {
		return SubjectRecord{}, m.createErr
	}
	if _, taken := m.byEmail[in.Email]; taken {
		return SubjectRecord{}, ErrDuplicateEmail
	}

	subject := SubjectRecord{
		ID:             fmt.Sprintf("u%d", len(m.subjects)+1),
		Email:          in.Email,
		PasswordDigest: in.PasswordDigest,
		Status:         in.Status,
	}
	m.subjects[subject.ID] = subject
	m.byEmail[subject.Email] = subject.ID
	return subject, nil
}

func (m *mockDirectory) UpdatePasswordDigest(_ context.Context, subjectID, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updatePasswordCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	subject, ok := m.subjects[subjectID]
	if !ok {
		return ErrEntityNotFound
	}
	subject.PasswordDigest = digest
	m.subjects[subjectID] = subject
	return nil
}

func (m *mockDirectory) UpdateEmail(_ context.Context, subjectID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateEmailCalls++
	subject, ok := m.subjects[subjectID]
	if !ok {
		return ErrEntityNotFound
	}
	if owner, taken := m.byEmail[email]; taken && owner != subjectID {
		return ErrDuplicateEmail
	}
	delete(m.byEmail, subject.Email)
	subject.Email = email
	m.subjects[subjectID] = subject
	m.byEmail[email] = subjectID
	return nil
}

func (m *mockDirectory) UpdateStatus(_ context.Context, subjectID string, status AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateStatusCalls++
	subject, ok := m.subjects[subjectID]
	if !ok {
		return ErrEntityNotFound
	}
	subject.Status = status
	m.subjects[subjectID] = subject
	return nil
}

func (m *mockDirectory) GrantsFor(_ context.Context, subjectID string) ([]string, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.grantsForCalls++
	if _, ok := m.subjects[subjectID]; !ok {
		return nil, nil, ErrEntityNotFound
	}
	roles := append([]string(nil), m.roles[subjectID]...)
	return roles, rbac.Union(m.grants, roles), nil
}

func (m *mockDirectory) AssignRole(_ context.Context, subjectID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subjects[subjectID]; !ok {
		return ErrEntityNotFound
	}
	if _, ok := m.grants[role]; !ok {
		return ErrEntityNotFound
	}
	for _, held := range m.roles[subjectID] {
		if held == role {
			return nil
		}
	}
	m.roles[subjectID] = append(m.roles[subjectID], role)
	return nil
}

func (m *mockDirectory) RevokeRole(_ context.Context, subjectID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subjects[subjectID]; !ok {
		return ErrEntityNotFound
	}
	held := m.roles[subjectID]
	for i, name := range held {
		if name == role {
			m.roles[subjectID] = append(held[:i], held[i+1:]...)
			return nil
		}
	}
	return ErrAssignmentNotFound
}

func (m *mockDirectory) status(t *testing.T, subjectID string) AccountStatus {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	subject, ok := m.subjects[subjectID]
	if !ok {
		t.Fatalf("unknown subject %q", subjectID)
	}
	return subject.Status
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []Message
	sendErr  error
}

func (n *recordingNotifier) Send(_ context.Context, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.sendErr != nil {
		return n.sendErr
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) last(t *testing.T) Message {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		t.Fatal("no messages delivered")
	}
	return n.messages[len(n.messages)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func newTestRedisServer(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	_, client := newTestRedisServer(t)
	return client
}

func testEngineConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    time.Hour,
			SigningSecret: []byte("0123456789abcdef0123456789abcdef"),
		},
		Verification: VerificationConfig{
			TTL:        time.Hour,
			CodeDigits: 6,
		},
		Password: PasswordConfig{
			Memory:      8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   16,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *mockDirectory, *recordingNotifier) {
	t.Helper()

	directory := newMockDirectory()
	notifier := &recordingNotifier{}

	engine, err := NewBuilder().
		WithConfig(testEngineConfig()).
		WithRedis(newTestRedis(t)).
		WithDirectory(directory).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return engine, directory, notifier
}

// registerActive registers a subject and promotes it straight to StatusActive.
func registerActive(t *testing.T, engine *Engine, directory *mockDirectory, email, pass string) SubjectRecord {
	t.Helper()

	ctx := context.Background()
	subject, err := engine.Register(ctx, RegisterInput{Email: email, Password: pass})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := directory.UpdateStatus(ctx, subject.ID, StatusActive); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	subject.Status = StatusActive
	return subject
}
