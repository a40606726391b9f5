package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Change events travel over Redis pub/sub so every server instance sees them.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = DefaultConfig().DialTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	stored := *account
	stored.PostCount = 0
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	// SETNX makes handle uniqueness atomic across instances
	created, err := s.client.SetNX(ctx, accountKey(account.Handle), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return model.ErrDuplicateHandle
	}
	if account.PostCount > 0 {
		return s.client.Set(ctx, postCountKey(account.Handle), account.PostCount, 0).Err()
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, handle model.Handle) (*model.Account, error) {
	pipe := s.client.Pipeline()
	dataCmd := pipe.Get(ctx, accountKey(handle))
	countCmd := pipe.Get(ctx, postCountKey(handle))
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	data, err := dataCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}

	count, err := countCmd.Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	account.PostCount = count
	return &account, nil
}

func (s *Storage) UpdateProfilePicture(ctx context.Context, handle model.Handle, avatar model.AvatarID) error {
	key := accountKey(handle)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrAccountNotFound
			}
			return err
		}

		var account model.Account
		if err := json.Unmarshal(data, &account); err != nil {
			return err
		}
		account.ProfilePicture = avatar
		data, err = json.Marshal(account)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
}

// Policy operations

func (s *Storage) SavePolicy(ctx context.Context, child model.Handle, policy model.Policy) error {
	return s.client.HSet(ctx, policyKey(child), policyFields(policy)).Err()
}

func (s *Storage) GetPolicy(ctx context.Context, child model.Handle) (*model.Policy, error) {
	fields, err := s.client.HGetAll(ctx, policyKey(child)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, model.ErrPolicyNotFound
	}
	return parsePolicy(fields)
}

func (s *Storage) UpdatePolicy(ctx context.Context, child model.Handle, patch model.PolicyPatch) (*model.Policy, error) {
	key := policyKey(child)
	defaults := policyFields(model.DefaultPolicy())
	changed := patchFields(patch)

	// MULTI/EXEC: seed missing fields with defaults, overwrite the patched ones, read back
	var getAll *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, value := range defaults {
			pipe.HSetNX(ctx, key, field, value)
		}
		if len(changed) > 0 {
			pipe.HSet(ctx, key, changed)
		}
		getAll = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parsePolicy(getAll.Val())
}

func policyFields(p model.Policy) map[string]any {
	return map[string]any{
		fieldBudget:   strconv.Itoa(p.SessionBudgetMinutes),
		fieldFilter:   strconv.FormatBool(p.ContentFilterEnabled),
		fieldApproval: strconv.FormatBool(p.PostApprovalRequired),
		fieldViewOnly: strconv.FormatBool(p.ViewOnly),
	}
}

func patchFields(p model.PolicyPatch) map[string]any {
	out := make(map[string]any)
	if p.SessionBudgetMinutes != nil {
		out[fieldBudget] = strconv.Itoa(*p.SessionBudgetMinutes)
	}
	if p.ContentFilterEnabled != nil {
		out[fieldFilter] = strconv.FormatBool(*p.ContentFilterEnabled)
	}
	if p.PostApprovalRequired != nil {
		out[fieldApproval] = strconv.FormatBool(*p.PostApprovalRequired)
	}
	if p.ViewOnly != nil {
		out[fieldViewOnly] = strconv.FormatBool(*p.ViewOnly)
	}
	return out
}

// parsePolicy reads a policy hash; absent fields keep their defaults
func parsePolicy(fields map[string]string) (*model.Policy, error) {
	policy := model.DefaultPolicy()
	var err error
	if v, ok := fields[fieldBudget]; ok {
		if policy.SessionBudgetMinutes, err = strconv.Atoi(v); err != nil {
			return nil, err
		}
	}
	if v, ok := fields[fieldFilter]; ok {
		if policy.ContentFilterEnabled, err = strconv.ParseBool(v); err != nil {
			return nil, err
		}
	}
	if v, ok := fields[fieldApproval]; ok {
		if policy.PostApprovalRequired, err = strconv.ParseBool(v); err != nil {
			return nil, err
		}
	}
	if v, ok := fields[fieldViewOnly]; ok {
		if policy.ViewOnly, err = strconv.ParseBool(v); err != nil {
			return nil, err
		}
	}
	return &policy, nil
}

// Post operations

func (s *Storage) CreatePost(ctx context.Context, post *model.Post) error {
	exists, err := s.client.Exists(ctx, accountKey(post.AuthorHandle)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrAccountNotFound
	}

	stored := *post
	stored.Likes = 0
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, postKey(post.ID), data, 0)
	pipe.ZAdd(ctx, timelineKey(), redis.Z{
		Score:  float64(post.CreatedAt.UnixMilli()),
		Member: string(post.ID),
	})
	pipe.Incr(ctx, postCountKey(post.AuthorHandle))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetPost(ctx context.Context, id model.PostID) (*model.Post, error) {
	pipe := s.client.Pipeline()
	dataCmd := pipe.Get(ctx, postKey(id))
	likesCmd := pipe.SCard(ctx, likesKey(id))
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return decodePost(dataCmd, likesCmd)
}

func (s *Storage) ListPosts(ctx context.Context) ([]*model.Post, error) {
	ids, err := s.client.ZRevRange(ctx, timelineKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Post{}, nil
	}

	type postCmds struct {
		data  *redis.StringCmd
		likes *redis.IntCmd
	}
	cmds := make([]postCmds, len(ids))
	pipe := s.client.Pipeline()
	for i, id := range ids {
		cmds[i] = postCmds{
			data:  pipe.Get(ctx, postKey(model.PostID(id))),
			likes: pipe.SCard(ctx, likesKey(model.PostID(id))),
		}
	}
	_, err = pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	posts := make([]*model.Post, 0, len(ids))
	for _, c := range cmds {
		post, err := decodePost(c.data, c.likes)
		if err != nil {
			if errors.Is(err, model.ErrPostNotFound) {
				continue // index entry outlived its post
			}
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func decodePost(dataCmd *redis.StringCmd, likesCmd *redis.IntCmd) (*model.Post, error) {
	data, err := dataCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPostNotFound
		}
		return nil, err
	}

	var post model.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, err
	}
	post.Likes = int(likesCmd.Val())
	return &post, nil
}

// Like operations

func (s *Storage) SetLike(ctx context.Context, id model.PostID, handle model.Handle, like bool) error {
	exists, err := s.client.Exists(ctx, postKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrPostNotFound
	}

	pipe := s.client.TxPipeline()
	if like {
		pipe.SAdd(ctx, likesKey(id), string(handle))
		pipe.SAdd(ctx, userLikesKey(handle), string(id))
	} else {
		pipe.SRem(ctx, likesKey(id), string(handle))
		pipe.SRem(ctx, userLikesKey(handle), string(id))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) LikedPosts(ctx context.Context, handle model.Handle) (map[model.PostID]bool, error) {
	ids, err := s.client.SMembers(ctx, userLikesKey(handle)).Result()
	if err != nil {
		return nil, err
	}
	liked := make(map[model.PostID]bool, len(ids))
	for _, id := range ids {
		liked[model.PostID(id)] = true
	}
	return liked, nil
}

// Notification operations

func (s *Storage) Publish(ctx context.Context, event model.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, eventsChannel(), data).Err()
}

func (s *Storage) Subscribe(fn func(model.ChangeEvent)) func() {
	ctx := context.Background()
	pubsub := s.client.Subscribe(ctx, eventsChannel())

	// Wait for the subscription to be confirmed so no later publish is missed
	confirmCtx, cancel := context.WithTimeout(ctx, time.Second)
	_, _ = pubsub.Receive(confirmCtx)
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var event model.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			fn(event)
		}
	}()

	return func() {
		_ = pubsub.Close()
		<-done
	}
}
