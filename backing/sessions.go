package backing

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is the sliding window applied when [NewSessions] is
// given a non-positive TTL.
const DefaultSessionTTL = time.Hour

const (
	sessionRecordVersionV1 = 1

	sessionKeyspace = "sess:"

	maxSessionSubject = 255
	maxSessionPayload = 1 << 20
)

// ErrSessionCorrupt is returned when a stored session blob fails to decode.
var ErrSessionCorrupt = errors.New("session record corrupt")

// SessionRecord is an opaque session held by the backing store. The payload
// is never inspected here; only the bookkeeping timestamps are owned by
// this package.
type SessionRecord struct {
	Subject        string
	Payload        []byte
	CreatedAt      int64
	LastAccessedAt int64
}

// Sessions manages opaque session records with a sliding TTL window.
type Sessions struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSessions creates a session manager over store. ttl <= 0 selects
// [DefaultSessionTTL].
func NewSessions(store *Store, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{store: store, ttl: ttl, now: time.Now}
}

// Create stores a new session for subject and returns its opaque key,
// shaped subject:timestamp:random.
func (m *Sessions) Create(ctx context.Context, subject string, payload []byte) (string, error) {
	if subject == "" || len(subject) > maxSessionSubject {
		return "", errors.New("invalid session subject")
	}
	if len(payload) > maxSessionPayload {
		return "", errors.New("session payload too large")
	}

	now := m.now()
	key := subject + ":" + strconv.FormatInt(now.Unix(), 10) + ":" + uuid.NewString()

	record := &SessionRecord{
		Subject:        subject,
		Payload:        payload,
		CreatedAt:      now.Unix(),
		LastAccessedAt: now.Unix(),
	}

	data, err := encodeSessionRecord(record)
	if err != nil {
		return "", err
	}
	if err := m.store.SetWithTTL(ctx, sessionKeyspace+key, data, m.ttl); err != nil {
		return "", err
	}

	return key, nil
}

// Get returns the session under key and slides its TTL window, updating
// LastAccessedAt. Absent and expired sessions return [ErrKeyNotFound].
//
// The slide rewrites the whole record. Payloads are immutable after
// [Sessions.Create], so concurrent Gets race only on LastAccessedAt:
// whichever write lands last wins, and both re-arm the full window.
func (m *Sessions) Get(ctx context.Context, key string) (*SessionRecord, error) {
	data, err := m.store.Get(ctx, sessionKeyspace+key)
	if err != nil {
		return nil, err
	}

	record, err := decodeSessionRecord(data)
	if err != nil {
		return nil, err
	}

	record.LastAccessedAt = m.now().Unix()
	updated, err := encodeSessionRecord(record)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetWithTTL(ctx, sessionKeyspace+key, updated, m.ttl); err != nil {
		return nil, err
	}

	return record, nil
}

// Delete removes the session under key and reports whether it existed.
func (m *Sessions) Delete(ctx context.Context, key string) (bool, error) {
	return m.store.Delete(ctx, sessionKeyspace+key)
}

// DeleteAllForSubject removes every session belonging to subject and
// returns the count.
func (m *Sessions) DeleteAllForSubject(ctx context.Context, subject string) (int, error) {
	if subject == "" {
		return 0, errors.New("invalid session subject")
	}
	return m.store.DeleteByPrefix(ctx, sessionKeyspace+subject+":")
}

func encodeSessionRecord(r *SessionRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionRecordVersionV1)

	if len(r.Subject) > maxSessionSubject {
		return nil, errors.New("subject too long")
	}
	buf.WriteByte(byte(len(r.Subject)))
	buf.WriteString(r.Subject)

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.LastAccessedAt); err != nil {
		return nil, err
	}

	if len(r.Payload) > maxSessionPayload {
		return nil, errors.New("payload too large")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(r.Payload))); err != nil {
		return nil, err
	}
	buf.Write(r.Payload)

	return buf.Bytes(), nil
}

func decodeSessionRecord(data []byte) (*SessionRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if version != sessionRecordVersionV1 {
		return nil, fmt.Errorf("%w: unknown version %d", ErrSessionCorrupt, version)
	}

	r := &SessionRecord{}

	subjectLen, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	subject := make([]byte, subjectLen)
	if _, err := io.ReadFull(reader, subject); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	r.Subject = string(subject)

	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if err := binary.Read(reader, binary.BigEndian, &r.LastAccessedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	var payloadLen uint32
	if err := binary.Read(reader, binary.BigEndian, &payloadLen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if payloadLen > maxSessionPayload {
		return nil, fmt.Errorf("%w: payload length out of range", ErrSessionCorrupt)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	r.Payload = payload

	return r, nil
}
