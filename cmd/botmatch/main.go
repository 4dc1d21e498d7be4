package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sparkd-app/dategame/internal/channel"
	"github.com/sparkd-app/dategame/internal/config"
	"github.com/sparkd-app/dategame/internal/game"
	"github.com/sparkd-app/dategame/internal/quizapi"
)

// botmatch connects two scripted players to a running gateway and plays one
// full stage end to end: invite, accept, answer every question, submit, and
// poll the results. Useful as a smoke test against a live gateway.

type autoPrompter struct {
	name   string
	accept bool
}

func (p autoPrompter) ShowInvite(inv channel.ReceiveInvitePayload, respond func(accept bool)) {
	fmt.Printf("[%s] invite %s from %s (stage %d), accepting=%v\n", p.name, inv.InvitationID, inv.SenderID, inv.Level, p.accept)
	respond(p.accept)
}

func (p autoPrompter) DismissInvite(invitationID string) {
	fmt.Printf("[%s] invite %s dismissed\n", p.name, invitationID)
}

func (p autoPrompter) Notify(title, message string) {
	fmt.Printf("[%s] %s: %s\n", p.name, title, message)
}

type bot struct {
	name    string
	sock    *channel.Socket
	store   *game.Store
	engine  *game.Engine
	neg     *game.Negotiator
	api     *quizapi.Client
	started chan game.Session
	done    chan game.Results
}

func newBot(ctx context.Context, name string, cfg config.Config, logger zerolog.Logger) (*bot, error) {
	sock, err := channel.Dial(ctx, cfg.SocketURL, name, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting %s: %w", name, err)
	}
	b := &bot{
		name:    name,
		sock:    sock,
		store:   game.NewStore(),
		api:     quizapi.New(cfg.APIBaseURL, name),
		started: make(chan game.Session, 1),
		done:    make(chan game.Results, 1),
	}
	b.neg, err = game.NewNegotiator(game.NegotiatorConfig{
		Channel:  sock,
		Store:    b.store,
		SelfID:   name,
		Prompter: autoPrompter{name: name, accept: true},
		Logger:   logger,
		OnSessionStarted: func(s game.Session) {
			select {
			case b.started <- s:
			default:
			}
		},
	})
	if err != nil {
		sock.Close()
		return nil, err
	}
	b.engine, err = game.NewEngine(game.EngineConfig{
		Channel:       sock,
		API:           b.api,
		Store:         b.store,
		SelfID:        name,
		Logger:        logger,
		Cues:          game.NopCues{},
		Prompter:      autoPrompter{name: name},
		QuestionTime:  cfg.QuestionTime,
		FeedbackDwell: cfg.FeedbackDwell,
		OnComplete: func(r game.Results) {
			select {
			case b.done <- r:
			default:
			}
		},
	})
	if err != nil {
		sock.Close()
		return nil, err
	}
	return b, nil
}

// play answers every question with its first option until the stage ends.
func (b *bot) play(ctx context.Context) (game.Results, error) {
	if err := b.engine.Start(ctx); err != nil {
		return game.Results{}, fmt.Errorf("%s starting stage: %w", b.name, err)
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	answered := -1
	for {
		select {
		case r := <-b.done:
			return r, nil
		case <-ctx.Done():
			return game.Results{}, ctx.Err()
		case <-ticker.C:
			if b.engine.State() != game.StatePlaying {
				continue
			}
			q, idx, ok := b.engine.CurrentQuestion()
			if !ok || idx == answered || len(q.Options) == 0 {
				continue
			}
			answered = idx
			if err := b.engine.Answer(q.Options[0].Text); err != nil {
				fmt.Printf("[%s] answer q%d failed: %v\n", b.name, idx, err)
			}
		}
	}
}

func main() {
	var (
		sender    = flag.String("sender", "alice", "user id of the inviting player")
		recipient = flag.String("recipient", "bob", "user id of the accepting player")
		timeout   = flag.Duration("timeout", 2*time.Minute, "overall deadline for the match")
	)
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := newBot(ctx, *sender, cfg, logger.With().Str("bot", *sender).Logger())
	if err != nil {
		log.Fatal(err)
	}
	defer a.sock.Close()
	b, err := newBot(ctx, *recipient, cfg, logger.With().Str("bot", *recipient).Logger())
	if err != nil {
		log.Fatal(err)
	}
	defer b.sock.Close()

	if err := a.neg.SendInvite(game.Match{ID: *recipient, Name: *recipient}, false); err != nil {
		log.Fatal(err)
	}

	var sess game.Session
	select {
	case sess = <-a.started:
	case <-ctx.Done():
		log.Fatal("timed out waiting for session start")
	}
	select {
	case <-b.started:
	case <-ctx.Done():
		log.Fatal("timed out waiting for session start")
	}
	fmt.Printf("session %s: %s vs %s, stage %s\n", sess.SessionID, *sender, *recipient, game.StageName(sess.Stage))

	resCh := make(chan error, 2)
	go func() {
		r, err := a.play(ctx)
		if err == nil {
			fmt.Printf("[%s] finished, %d shared\n", a.name, r.Shared)
		}
		resCh <- err
	}()
	go func() {
		r, err := b.play(ctx)
		if err == nil {
			fmt.Printf("[%s] finished, %d shared\n", b.name, r.Shared)
		}
		resCh <- err
	}()
	for i := 0; i < 2; i++ {
		if err := <-resCh; err != nil {
			log.Fatal(err)
		}
	}

	watcher := game.ResultsWatcher{API: a.api, Logger: logger, Interval: time.Second, Attempts: 20}
	report, err := watcher.Await(ctx, sess.SessionID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("compatibility %d%%, %d shared answers\n", report.Compatibility, report.Shared)
	for _, row := range report.Results {
		fmt.Printf("- %s scored %d\n", row.UserName, row.Score)
	}

	gate := game.NextStageGate{Cooldown: cfg.NextStageCooldown, MinCompatibility: cfg.MinCompatibility}
	stage := a.store.Snapshot().Stage
	if gate.Allowed(stage, report.Compatibility, gate.Cooldown) {
		fmt.Printf("next stage available: %s\n", game.StageName(stage+1))
	} else {
		fmt.Println("no next stage for this pair")
	}
}
