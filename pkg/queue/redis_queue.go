// Package queue runs asynchronous cold starts on a Redis stream.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"quotecards/internal/metrics"
	"quotecards/internal/util"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

var ErrInvalidJob = errors.New("invalid cold start job")

// Job is one asynchronous cold start for an already created channel.
type Job struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channelId"`
	UserID       string    `json:"userId"`
	BookTitle    string    `json:"bookTitle"`
	Author       string    `json:"author,omitempty"`
	Count        int       `json:"count"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	Cards        int       `json:"cards"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Handler runs a job and returns how many cards it produced.
type Handler func(ctx context.Context, job Job) (int, error)

// Stream entry fields. The job record itself lives under its own key.
const (
	fieldJob     = "job"
	fieldChannel = "channel"
)

type RedisQueueConfig struct {
	// Client is used when set; otherwise a client is dialled from Addr.
	Client   redis.UniversalClient
	Addr     string
	Password string
	Stream   string
	Group    string
	Consumer string
	JobTTL   time.Duration
	// MaxAttempts of 1 (the default) means a failed cold start is not rerun. Entries abandoned
	// by a crashed worker are still reclaimed after ClaimIdle.
	MaxAttempts int
	Block       time.Duration
	ClaimIdle   time.Duration
	RetryDelay  time.Duration
	MaxLen      int64
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

func (c RedisQueueConfig) withDefaults() (RedisQueueConfig, error) {
	c.Stream = strings.TrimSpace(c.Stream)
	if c.Stream == "" {
		return c, errors.New("queue stream required")
	}
	if c.Client == nil {
		addr := strings.TrimSpace(c.Addr)
		if addr == "" {
			return c, errors.New("redis addr required")
		}
		c.Client = redis.NewClient(&redis.Options{Addr: addr, Password: c.Password})
	}
	if c.Group = strings.TrimSpace(c.Group); c.Group == "" {
		c.Group = "coldstart"
	}
	if c.Consumer = strings.TrimSpace(c.Consumer); c.Consumer == "" {
		c.Consumer = util.NewID()
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 24 * time.Hour
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.ClaimIdle <= 0 {
		// Seven illustrations can legitimately take minutes.
		c.ClaimIdle = 10 * time.Minute
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.MaxLen <= 0 {
		c.MaxLen = 10000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

// RedisJobQueue keeps job records as JSON values with a TTL and hands job ids to workers through
// a stream consumer group.
type RedisJobQueue struct {
	cfg    RedisQueueConfig
	client redis.UniversalClient
	group  sync.Once
	now    func() time.Time
}

func NewRedisJobQueue(cfg RedisQueueConfig) (*RedisJobQueue, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &RedisJobQueue{
		cfg:    cfg,
		client: cfg.Client,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Enqueue records the job as queued and appends it to the stream.
func (q *RedisJobQueue) Enqueue(ctx context.Context, job Job) (Job, error) {
	job.ChannelID = strings.TrimSpace(job.ChannelID)
	job.BookTitle = strings.TrimSpace(job.BookTitle)
	if job.ChannelID == "" || job.BookTitle == "" || job.Count <= 0 {
		return Job{}, fmt.Errorf("%w: channel, title and count required", ErrInvalidJob)
	}
	created := q.now()
	job = Job{
		ID:        util.NewID(),
		ChannelID: job.ChannelID,
		UserID:    job.UserID,
		BookTitle: job.BookTitle,
		Author:    job.Author,
		Count:     job.Count,
		Status:    StatusQueued,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := q.save(ctx, job); err != nil {
		return Job{}, err
	}
	if err := q.client.XAdd(ctx, q.entry(job)).Err(); err != nil {
		return Job{}, fmt.Errorf("publish job: %w", err)
	}
	return job, nil
}

// GetJob loads a job record. Expired and unknown ids report false.
func (q *RedisJobQueue) GetJob(ctx context.Context, jobID string) (Job, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, false, nil
	}
	raw, err := q.client.Get(ctx, q.recordKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, false, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return job, true, nil
}

// Run consumes jobs with concurrency workers until ctx is done.
func (q *RedisJobQueue) Run(ctx context.Context, concurrency int, handler Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}
	var wg sync.WaitGroup
	for i := range max(concurrency, 1) {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			q.work(ctx, name, handler)
		}(fmt.Sprintf("%s-%d", q.cfg.Consumer, i))
	}
	wg.Wait()
	return nil
}

func (q *RedisJobQueue) ensureGroup(ctx context.Context) error {
	var err error
	q.group.Do(func() {
		err = q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "0").Err()
		if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
			err = nil
		}
	})
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (q *RedisJobQueue) work(ctx context.Context, consumer string, handler Handler) {
	for ctx.Err() == nil {
		msgs, err := q.poll(ctx, consumer)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.cfg.Logger.Warn("queue read failed", "stream", q.cfg.Stream, "err", err)
			sleep(ctx, time.Second)
			continue
		}
		for _, msg := range msgs {
			q.dispatch(ctx, msg, handler)
		}
	}
}

// poll returns entries abandoned by other consumers first, then blocks for new ones.
func (q *RedisJobQueue) poll(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: consumer,
		MinIdle:  q.cfg.ClaimIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		q.cfg.Logger.Debug("reclaim skipped", "err", err)
	}
	if len(claimed) > 0 {
		return claimed, nil
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    1,
		Block:    q.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

func (q *RedisJobQueue) dispatch(ctx context.Context, msg redis.XMessage, handler Handler) {
	jobID, _ := msg.Values[fieldJob].(string)
	if jobID == "" {
		q.settle(ctx, msg.ID)
		return
	}
	job, ok, err := q.GetJob(ctx, jobID)
	if err == nil && !ok {
		err = fmt.Errorf("%w: record for %s expired", ErrInvalidJob, jobID)
	}
	if err == nil {
		job.Attempts++
		err = q.transition(ctx, &job, StatusProcessing, "")
	}
	if err != nil {
		q.cfg.Logger.Warn("cold start job dropped", "job_id", jobID, "err", err)
		q.settle(ctx, msg.ID)
		return
	}

	logger := q.cfg.Logger.With("job_id", job.ID, "channel_id", job.ChannelID, "attempt", job.Attempts)
	cards, runErr := handler(util.ContextWithLogger(ctx, logger), job)
	switch {
	case runErr == nil:
		job.Cards = cards
		q.finish(ctx, &job, StatusDone, "", msg.ID)
		logger.Info("cold start job done", "cards", cards)
	case job.Attempts >= q.cfg.MaxAttempts:
		q.finish(ctx, &job, StatusFailed, runErr.Error(), msg.ID)
		logger.Warn("cold start job failed", "err", runErr)
	default:
		if err := q.transition(ctx, &job, StatusQueued, runErr.Error()); err != nil {
			logger.Warn("job status update failed", "err", err)
		}
		q.observe("retried")
		if !sleep(ctx, q.cfg.RetryDelay) {
			return
		}
		if err := q.requeue(ctx, msg.ID, job); err != nil {
			logger.Warn("requeue failed, entry stays pending", "err", err)
		}
	}
}

func (q *RedisJobQueue) finish(ctx context.Context, job *Job, status, errMsg, msgID string) {
	if err := q.transition(ctx, job, status, errMsg); err != nil {
		q.cfg.Logger.Warn("job status update failed", "job_id", job.ID, "err", err)
	}
	q.settle(ctx, msgID)
	q.observe(status)
}

func (q *RedisJobQueue) transition(ctx context.Context, job *Job, status, errMsg string) error {
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = q.now()
	return q.save(ctx, *job)
}

func (q *RedisJobQueue) save(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.Set(ctx, q.recordKey(job.ID), data, q.cfg.JobTTL).Err()
}

// settle acknowledges and removes a stream entry.
func (q *RedisJobQueue) settle(ctx context.Context, msgID string) {
	pipe := q.client.Pipeline()
	pipe.XAck(ctx, q.cfg.Stream, q.cfg.Group, msgID)
	pipe.XDel(ctx, q.cfg.Stream, msgID)
	if _, err := pipe.Exec(ctx); err != nil {
		q.cfg.Logger.Warn("settle stream entry", "msg_id", msgID, "err", err)
	}
}

// requeue publishes a fresh entry for job and retires msgID in one transaction, so a failure
// leaves the original entry pending for reclaim.
func (q *RedisJobQueue) requeue(ctx context.Context, msgID string, job Job) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, q.entry(job))
	pipe.XAck(ctx, q.cfg.Stream, q.cfg.Group, msgID)
	pipe.XDel(ctx, q.cfg.Stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisJobQueue) entry(job Job) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.cfg.Stream,
		MaxLen: q.cfg.MaxLen,
		Approx: true,
		Values: map[string]any{fieldJob: job.ID, fieldChannel: job.ChannelID},
	}
}

func (q *RedisJobQueue) observe(outcome string) {
	if q.cfg.Metrics != nil {
		q.cfg.Metrics.JobsProcessed.WithLabelValues(outcome).Inc()
	}
}

func (q *RedisJobQueue) recordKey(jobID string) string {
	return q.cfg.Stream + ":job:" + jobID
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
