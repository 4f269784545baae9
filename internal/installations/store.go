// Package installations reads the per-team rows written by the external
// installer: Slack bot tokens, Zoho tokens and notification recipients.
package installations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow/internal/common/logger"
	"leadflow/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCacheTTL = 10 * time.Minute

	slackKeyPrefix     = "lead:slack:token:"
	zohoKeyPrefix      = "lead:zoho:token:"
	recipientKeyPrefix = "lead:recipient:"
)

var ErrNotInstalled = errors.New("NOT_INSTALLED")

type SlackInstallation struct {
	TeamID      string `json:"team_id"`
	TeamName    string `json:"team_name"`
	AccessToken string `json:"access_token"`
	BotUserID   string `json:"bot_user_id"`
}

type ZohoInstallation struct {
	TeamID       string     `json:"team_id"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	APIDomain    string     `json:"api_domain"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token has a known expiry in the past.
func (z ZohoInstallation) Expired(now time.Time) bool {
	return z.ExpiresAt != nil && !z.ExpiresAt.After(now)
}

type Options struct {
	CacheTTL time.Duration
	Logger   logger.Logger
}

// Store is a read-through cache over the installation tables. A nil Redis
// client disables caching.
type Store struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

func NewStore(db *sql.DB, rdb *redis.Client, opts Options) *Store {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Store{
		db:     db,
		redis:  rdb,
		ttl:    ttl,
		now:    time.Now,
		logger: log.WithFields(map[string]interface{}{"component": "installations"}),
	}
}

// SlackInstallation returns the bot installation for a workspace.
func (s *Store) SlackInstallation(ctx context.Context, teamID string) (*SlackInstallation, error) {
	key := slackKeyPrefix + teamID
	var inst SlackInstallation
	if s.cached(ctx, key, &inst) {
		return &inst, nil
	}

	query := `SELECT team_id, COALESCE(team_name, ''), access_token, COALESCE(bot_user_id, '')
		FROM slack_installations WHERE team_id = $1`
	err := s.db.QueryRowContext(ctx, query, teamID).Scan(&inst.TeamID, &inst.TeamName, &inst.AccessToken, &inst.BotUserID)
	if err != nil {
		return nil, s.lookupError("slack", teamID, err)
	}

	s.remember(ctx, key, inst, s.ttl)
	return &inst, nil
}

// SlackToken is the bot token for a workspace.
func (s *Store) SlackToken(ctx context.Context, teamID string) (string, error) {
	inst, err := s.SlackInstallation(ctx, teamID)
	if err != nil {
		return "", err
	}
	return inst.AccessToken, nil
}

// ZohoInstallation returns the team's Zoho token. It is cached until the
// token expires, capped at the store TTL; expired tokens are not cached.
func (s *Store) ZohoInstallation(ctx context.Context, teamID string) (*ZohoInstallation, error) {
	key := zohoKeyPrefix + teamID
	var inst ZohoInstallation
	if s.cached(ctx, key, &inst) {
		return &inst, nil
	}

	var expires sql.NullTime
	query := `SELECT team_id, access_token, COALESCE(refresh_token, ''), api_domain, expires_at
		FROM zoho_installations WHERE team_id = $1`
	err := s.db.QueryRowContext(ctx, query, teamID).Scan(&inst.TeamID, &inst.AccessToken, &inst.RefreshToken, &inst.APIDomain, &expires)
	if err != nil {
		return nil, s.lookupError("zoho", teamID, err)
	}
	if expires.Valid {
		t := expires.Time
		inst.ExpiresAt = &t
	}

	now := s.now()
	ttl := s.ttl
	if inst.ExpiresAt != nil {
		if remaining := inst.ExpiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl > 0 {
		s.remember(ctx, key, inst, ttl)
	} else {
		s.logger.Warn("zoho token is expired", map[string]interface{}{
			"team_id":    teamID,
			"expires_at": inst.ExpiresAt,
		})
	}
	return &inst, nil
}

// Recipient returns the notification target for a team and channel.
func (s *Store) Recipient(ctx context.Context, teamID, channel string) (*models.NotificationRecipient, error) {
	channel = strings.ToLower(channel)
	key := recipientKeyPrefix + teamID + ":" + channel
	var r models.NotificationRecipient
	if s.cached(ctx, key, &r) {
		return &r, nil
	}

	query := `SELECT team_id, channel, COALESCE(email, ''), COALESCE(phone, '')
		FROM notification_recipients WHERE team_id = $1 AND channel = $2`
	err := s.db.QueryRowContext(ctx, query, teamID, channel).Scan(&r.TeamID, &r.Channel, &r.Email, &r.Phone)
	if err != nil {
		return nil, s.lookupError(channel+" recipient", teamID, err)
	}

	s.remember(ctx, key, r, s.ttl)
	return &r, nil
}

func (s *Store) lookupError(kind, teamID string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: no %s installation for team %s", ErrNotInstalled, kind, teamID)
	}
	return fmt.Errorf("lookup %s installation for team %s: %w", kind, teamID, err)
}

func (s *Store) cached(ctx context.Context, key string, dst interface{}) bool {
	if s.redis == nil {
		return false
	}
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("installation cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return false
	}
	return true
}

func (s *Store) remember(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn("installation cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
