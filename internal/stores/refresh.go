package stores

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/apexauth/authcore/refresh"
)

const (
	refreshRecordVersionV1 = 1
	defaultRefreshPrefix   = "art"
)

// consumeRefreshLua atomically flips an active token record to revoked.
// KEYS[1] = record key
// ARGV[1] = current unix timestamp
//
// Record layout: version(1) revoked(1) expiresAt(8 big-endian) issuedAt(8
// big-endian) idLen(1) id accountLen(2 big-endian) accountID. The revoked
// record keeps its TTL so late presenters of a rotated token observe
// 'revoked' rather than 'not found' until the purge sweep.
//
// Returns the pre-rotation record bytes on success, or an error string:
// "not_found", "revoked", "expired".
var consumeRefreshLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

if string.byte(data, 1) ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

if string.byte(data, 2) == 1 then
  return {err='revoked'}
end

local function read_be64(s, i)
  local v = 0
  for off = 0, 7 do
    local b = string.byte(s, i + off)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local expiresAt = read_be64(data, 3)
if not expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

if tonumber(ARGV[1]) >= expiresAt then
  return {err='expired'}
end

local ttlMs = redis.call('PTTL', KEYS[1])
if ttlMs <= 0 then
  return {err='expired'}
end

local newData = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3)
redis.call('SET', KEYS[1], newData, 'PX', ttlMs)
return data
`)

type refreshRecord struct {
	ID        string
	AccountID string
	IssuedAt  int64
	ExpiresAt int64
	Revoked   bool
}

var _ refresh.Store = (*RefreshStore)(nil)

// RefreshStore is the default Redis implementation of [refresh.Store].
// Records are keyed by the SHA-256 of the token value; a per-account set
// indexes active hashes for revoke-all.
type RefreshStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRefreshStore creates a Redis refresh token store.
func NewRefreshStore(redisClient redis.UniversalClient, prefix string) *RefreshStore {
	if prefix == "" {
		prefix = defaultRefreshPrefix
	}
	return &RefreshStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RefreshStore) key(hash [32]byte) string {
	return s.prefix + ":" + base64.RawURLEncoding.EncodeToString(hash[:])
}

func (s *RefreshStore) accountKey(accountID string) string {
	return s.prefix + "a:" + accountID
}

// Issue persists a new active token row with a fresh opaque value.
func (s *RefreshStore) Issue(ctx context.Context, accountID string, ttl time.Duration) (*refresh.Token, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: empty account id", refresh.ErrUnavailable)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: non-positive ttl", refresh.ErrUnavailable)
	}

	value, err := refresh.NewValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &refresh.Token{
		ID:        uuid.NewString(),
		Value:     value,
		AccountID: accountID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	encoded, err := encodeRefreshRecord(&refreshRecord{
		ID:        token.ID,
		AccountID: accountID,
		IssuedAt:  token.IssuedAt.Unix(),
		ExpiresAt: token.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	hash := refresh.HashValue(value)
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(hash), encoded, ttl)
	pipe.SAdd(ctx, s.accountKey(accountID), base64.RawURLEncoding.EncodeToString(hash[:]))
	pipe.Expire(ctx, s.accountKey(accountID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}

	return token, nil
}

// ValidateAndRotate consumes the presented value and issues a replacement.
// The revoked flip happens inside a Lua script, so two concurrent calls with
// the same value cannot both succeed.
func (s *RefreshStore) ValidateAndRotate(ctx context.Context, value string, ttl time.Duration) (string, *refresh.Token, error) {
	record, err := s.consume(ctx, value)
	if err != nil {
		return "", nil, err
	}

	next, err := s.Issue(ctx, record.AccountID, ttl)
	if err != nil {
		// The presented token is already revoked; the caller must fail
		// closed rather than retry with it.
		return "", nil, err
	}

	return record.AccountID, next, nil
}

// Revoke marks a single token revoked. Terminal and missing tokens are
// treated as already revoked.
func (s *RefreshStore) Revoke(ctx context.Context, value string) error {
	_, err := s.consume(ctx, value)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, refresh.ErrNotFound), errors.Is(err, refresh.ErrRevoked), errors.Is(err, refresh.ErrExpired):
		return nil
	default:
		return err
	}
}

// RevokeAllForAccount revokes every indexed token for the account.
func (s *RefreshStore) RevokeAllForAccount(ctx context.Context, accountID string) error {
	members, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}

	nowArg := time.Now().Unix()
	for _, member := range members {
		key := s.prefix + ":" + member
		if _, err := consumeRefreshLua.Run(ctx, s.redis, []string{key}, nowArg).Result(); err != nil {
			switch err.Error() {
			case "not_found", "revoked", "expired":
				continue
			default:
				return fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
			}
		}
	}

	if err := s.redis.Del(ctx, s.accountKey(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	return nil
}

func (s *RefreshStore) consume(ctx context.Context, value string) (*refreshRecord, error) {
	hash := refresh.HashValue(value)
	key := s.key(hash)

	result, err := consumeRefreshLua.Run(ctx, s.redis, []string{key}, time.Now().Unix()).Result()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, refresh.ErrNotFound
		case "revoked":
			return nil, refresh.ErrRevoked
		case "expired":
			return nil, refresh.ErrExpired
		default:
			return nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", refresh.ErrUnavailable)
	}

	record, decErr := decodeRefreshRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, decErr)
	}

	// The hash is terminal now; drop it from the revoke-all index.
	member := base64.RawURLEncoding.EncodeToString(hash[:])
	if err := s.redis.SRem(ctx, s.accountKey(record.AccountID), member).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}

	return record, nil
}

func encodeRefreshRecord(record *refreshRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(refreshRecordVersionV1)
	if record.Revoked {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}

	if len(record.ID) > 255 {
		return nil, errors.New("refresh record id too long")
	}
	buf.WriteByte(byte(len(record.ID)))
	buf.WriteString(record.ID)

	if len(record.AccountID) > 65535 {
		return nil, errors.New("refresh record account id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.AccountID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.AccountID)

	return buf.Bytes(), nil
}

func decodeRefreshRecord(data []byte) (*refreshRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != refreshRecordVersionV1 {
		return nil, errors.New("invalid refresh record version")
	}

	revoked, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &refreshRecord{Revoked: revoked == 1}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}

	idLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(reader, id); err != nil {
		return nil, err
	}
	record.ID = string(id)

	var accountLen uint16
	if err := binary.Read(reader, binary.BigEndian, &accountLen); err != nil {
		return nil, err
	}
	accountID := make([]byte, accountLen)
	if _, err := io.ReadFull(reader, accountID); err != nil {
		return nil, err
	}
	record.AccountID = string(accountID)

	return record, nil
}
