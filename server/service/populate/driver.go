// Package populate fills a new thread with simulated persona activity: a first wave of
// answers followed by rounds of votes and replies until a comment budget is spent.
package populate

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/overflew/internal/random"
	"github.com/hrygo/overflew/plugin/ai/timeout"
	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/server/internal/observability"
	"github.com/hrygo/overflew/server/runner/worker"
	"github.com/hrygo/overflew/server/service/persona"
	"github.com/hrygo/overflew/server/service/responder"
	"github.com/hrygo/overflew/store"
)

const (
	DefaultMaxComments   = 150
	DefaultPersonalities = 7

	DefaultSeedAnswers       = 3
	DefaultMaxIterations     = 200
	DefaultIterationPause    = 2 * time.Second
	DefaultEmptyThreadPause  = 5 * time.Second
	DefaultMaxIdlePasses     = 10
	DefaultMaxTargetAttempts = 10

	upvotePassProbability    = 0.9
	replyAfterUpvoteChance   = 0.7
	replyAfterDownvoteChance = 0.9
)

// StopReason records why a run ended.
type StopReason string

const (
	StopDisabled      StopReason = "disabled"
	StopNoPersonas    StopReason = "no_personas"
	StopBudget        StopReason = "budget"
	StopClosed        StopReason = "closed"
	StopIterations    StopReason = "iteration_limit"
	StopDuration      StopReason = "duration_limit"
	StopIdle          StopReason = "idle"
	StopContextCancel StopReason = "canceled"
)

// Config holds the run ceilings. Zero pauses disable sleeping; other zero values take defaults.
type Config struct {
	SeedAnswers       int
	MaxIterations     int
	MaxDuration       time.Duration
	IterationPause    time.Duration
	EmptyThreadPause  time.Duration
	MaxIdlePasses     int
	MaxTargetAttempts int
}

// DefaultConfig returns the production ceilings.
func DefaultConfig() Config {
	return Config{
		SeedAnswers:       DefaultSeedAnswers,
		MaxIterations:     DefaultMaxIterations,
		MaxDuration:       timeout.PopulateTimeout,
		IterationPause:    DefaultIterationPause,
		EmptyThreadPause:  DefaultEmptyThreadPause,
		MaxIdlePasses:     DefaultMaxIdlePasses,
		MaxTargetAttempts: DefaultMaxTargetAttempts,
	}
}

// Result summarizes one run.
type Result struct {
	QuestionID int32      `json:"questionId"`
	Personas   int        `json:"personas"`
	Answers    int        `json:"answers"`
	Votes      int        `json:"votes"`
	Replies    int        `json:"replies"`
	Iterations int        `json:"iterations"`
	Comments   int        `json:"comments"`
	Reason     StopReason `json:"reason"`
}

type member struct {
	persona *store.Persona
	bot     *store.User
}

type Driver struct {
	store     *store.Store
	pool      *worker.Pool
	personas  *persona.Registry
	responder *responder.Responder
	rand      random.Source
	config    Config
}

// NewDriver creates a driver. A nil src uses the process-wide random source.
func NewDriver(s *store.Store, pool *worker.Pool, personas *persona.Registry, r *responder.Responder, config Config, src random.Source) *Driver {
	defaults := DefaultConfig()
	if config.SeedAnswers <= 0 {
		config.SeedAnswers = defaults.SeedAnswers
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = defaults.MaxIterations
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = defaults.MaxDuration
	}
	if config.MaxIdlePasses <= 0 {
		config.MaxIdlePasses = defaults.MaxIdlePasses
	}
	if config.MaxTargetAttempts <= 0 {
		config.MaxTargetAttempts = defaults.MaxTargetAttempts
	}
	return &Driver{
		store:     s,
		pool:      pool,
		personas:  personas,
		responder: r,
		rand:      random.Or(src),
		config:    config,
	}
}

// Enqueue schedules a run as a parallel job. force skips the enabled setting, as the admin
// "populate now" action does.
func (d *Driver) Enqueue(questionID int32, force bool) *worker.Future {
	return d.pool.Enqueue(worker.Job{
		Name: "populate",
		Run: func(ctx context.Context) error {
			_, err := d.Populate(ctx, questionID, force)
			return err
		},
	}, worker.Parallel())
}

// MaybeEnqueue schedules a run when auto-populate is enabled in site settings.
func (d *Driver) MaybeEnqueue(ctx context.Context, questionID int32) bool {
	enabled, err := d.store.GetSiteSettingBool(ctx, store.SiteSettingAutoPopulateEnabled, false)
	if err != nil {
		slog.Error("failed to read auto-populate setting", slog.String("error", err.Error()))
		return false
	}
	if !enabled {
		return false
	}
	d.Enqueue(questionID, false)
	return true
}

// Populate runs both phases synchronously for questionID.
func (d *Driver) Populate(ctx context.Context, questionID int32, force bool) (*Result, error) {
	logger := observability.Logger(ctx).With(slog.Int(observability.LogFieldQuestionID, int(questionID)))
	result := &Result{QuestionID: questionID}

	if !force {
		enabled, err := d.store.GetSiteSettingBool(ctx, store.SiteSettingAutoPopulateEnabled, false)
		if err != nil {
			return nil, err
		}
		if !enabled {
			result.Reason = StopDisabled
			return result, nil
		}
	}
	maxComments, err := d.store.GetSiteSettingInt(ctx, store.SiteSettingAutoPopulateMaxComments, DefaultMaxComments)
	if err != nil {
		return nil, err
	}
	personalities, err := d.store.GetSiteSettingInt(ctx, store.SiteSettingAutoPopulatePersonalities, DefaultPersonalities)
	if err != nil {
		return nil, err
	}

	closed, err := d.store.IsQuestionClosed(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if closed {
		result.Reason = StopClosed
		return result, nil
	}

	members, err := d.selectMembers(ctx, personalities)
	if err != nil {
		return nil, err
	}
	result.Personas = len(members)
	if len(members) == 0 {
		result.Reason = StopNoPersonas
		return result, nil
	}
	logger.Info("auto-populate started",
		slog.Int("personas", len(members)),
		slog.Int("max_comments", maxComments))

	result.Answers = d.seedAnswers(ctx, members, questionID)
	if err := d.converse(ctx, members, questionID, maxComments, result); err != nil {
		return result, err
	}

	logger.Info("auto-populate finished",
		slog.String("reason", string(result.Reason)),
		slog.Int("answers", result.Answers),
		slog.Int("votes", result.Votes),
		slog.Int("replies", result.Replies),
		slog.Int("iterations", result.Iterations))
	return result, nil
}

func (d *Driver) selectMembers(ctx context.Context, count int) ([]member, error) {
	all, err := d.personas.ActivePersonas(ctx)
	if err != nil {
		return nil, err
	}
	members := make([]member, 0, max(0, min(count, len(all))))
	for _, i := range random.Sample(d.rand, len(all), count) {
		bot, err := d.personas.BotAccountFor(ctx, all[i])
		if err != nil {
			return nil, err
		}
		members = append(members, member{persona: all[i], bot: bot})
	}
	return members, nil
}

// seedAnswers has up to SeedAnswers members answer concurrently. Each answer re-reads the
// closed flag, so a thread closed mid-wave stops receiving answers.
func (d *Driver) seedAnswers(ctx context.Context, members []member, questionID int32) int {
	picked := random.Sample(d.rand, len(members), d.config.SeedAnswers)
	answers := make([]bool, len(picked))

	g, gctx := errgroup.WithContext(ctx)
	for slot, i := range picked {
		m := members[i]
		g.Go(func() error {
			if _, err := d.responder.Answer(gctx, m.persona, questionID); err != nil {
				logSkip(gctx, "seed answer skipped", m, err)
				return nil
			}
			answers[slot] = true
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, ok := range answers {
		if ok {
			count++
		}
	}
	return count
}

// converse runs vote-and-reply passes until a stop condition holds.
func (d *Driver) converse(ctx context.Context, members []member, questionID int32, maxComments int, result *Result) error {
	start := time.Now()
	idle := 0

	for {
		switch {
		case ctx.Err() != nil:
			result.Reason = StopContextCancel
			return nil
		case result.Iterations >= d.config.MaxIterations:
			result.Reason = StopIterations
			return nil
		case time.Since(start) >= d.config.MaxDuration:
			result.Reason = StopDuration
			return nil
		}

		closed, err := d.store.IsQuestionClosed(ctx, questionID)
		if err != nil {
			return err
		}
		if closed {
			result.Reason = StopClosed
			return nil
		}

		targets, err := d.store.ListComments(ctx, &store.FindComment{QuestionID: &questionID})
		if err != nil {
			return errors.Wrapf(err, "failed to list comments for question %d", questionID)
		}
		result.Comments = len(targets)
		if len(targets) >= maxComments {
			result.Reason = StopBudget
			return nil
		}

		result.Iterations++
		if len(targets) == 0 {
			idle++
			if idle >= d.config.MaxIdlePasses {
				result.Reason = StopIdle
				return nil
			}
			if err := sleep(ctx, d.config.EmptyThreadPause); err != nil {
				result.Reason = StopContextCancel
				return nil
			}
			continue
		}

		acted := false
		count := len(targets)
		for _, m := range members {
			if count >= maxComments {
				break
			}
			voted, replied := d.interact(ctx, m, questionID, targets)
			if voted {
				acted = true
				result.Votes++
			}
			if replied {
				result.Replies++
				count++
			}
		}
		result.Comments = count

		if acted {
			idle = 0
		} else {
			idle++
			if idle >= d.config.MaxIdlePasses {
				result.Reason = StopIdle
				return nil
			}
		}
		if err := sleep(ctx, d.config.IterationPause); err != nil {
			result.Reason = StopContextCancel
			return nil
		}
	}
}

// interact lets one member vote on a random comment it neither wrote nor voted on yet,
// and possibly reply to it. Nine passes in ten are upvote passes.
func (d *Driver) interact(ctx context.Context, m member, questionID int32, targets []*store.Comment) (voted, replied bool) {
	direction, replyChance := store.VoteUp, replyAfterUpvoteChance
	if !random.Chance(d.rand, upvotePassProbability) {
		direction, replyChance = store.VoteDown, replyAfterDownvoteChance
	}

	attempts := min(d.config.MaxTargetAttempts, len(targets))
	for i := 0; i < attempts; i++ {
		target := targets[d.rand.IntN(len(targets))]
		if target.CreatorID == m.bot.ID {
			continue
		}
		cast, err := d.castVote(ctx, m, questionID, target, direction)
		if err != nil {
			logSkip(ctx, "vote skipped", m, err)
			return false, false
		}
		if !cast {
			continue
		}
		voted = true
		if random.Chance(d.rand, replyChance) {
			if _, err := d.responder.Reply(ctx, m.persona, target.ID, responder.WithoutVote()); err != nil {
				logSkip(ctx, "reply skipped", m, err)
			} else {
				replied = true
			}
		}
		return voted, replied
	}
	return false, false
}

// castVote records the member's vote unless one already exists. The closed flag is
// re-read in the same transaction.
func (d *Driver) castVote(ctx context.Context, m member, questionID int32, target *store.Comment, direction int32) (bool, error) {
	cast := false
	err := d.store.WithTx(ctx, func(tx *store.Store) error {
		closed, err := tx.IsQuestionClosed(ctx, questionID)
		if err != nil {
			return err
		}
		if closed {
			return aierrors.GuardRejected("question closed")
		}
		targetType := store.VoteTargetComment
		existing, err := tx.GetVote(ctx, &store.FindVote{UserID: &m.bot.ID, TargetType: &targetType, TargetID: &target.ID})
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		if _, err := tx.CastVote(ctx, &store.Vote{
			UserID:     m.bot.ID,
			TargetType: targetType,
			TargetID:   target.ID,
			VoteType:   direction,
		}); err != nil {
			return err
		}
		cast = true
		return nil
	})
	return cast, err
}

func logSkip(ctx context.Context, msg string, m member, err error) {
	logger := observability.Logger(ctx)
	attrs := []any{slog.String(observability.LogFieldPersona, m.persona.Name), slog.String("error", err.Error())}
	switch aierrors.GetCodeFromError(err, "") {
	case aierrors.ErrCodeGuardRejected, aierrors.ErrCodeCompletionFailed:
		logger.Info(msg, attrs...)
	case aierrors.ErrCodeNotFound:
		logger.Warn(msg, attrs...)
	default:
		logger.Error(msg, attrs...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
