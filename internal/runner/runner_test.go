package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johnayoung/req-analyzer/internal/agent"
	"github.com/johnayoung/req-analyzer/internal/consensus"
	"github.com/johnayoung/req-analyzer/internal/logging"
	"github.com/johnayoung/req-analyzer/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registro = "El sistema debe permitir registrar usuarios con nombre, correo y contraseña"

func answer(score string) string {
	return fmt.Sprintf("SCORE: %s\nRATIONALE: ok\nISSUES:\n- [medium] Ambiguous actor\nSUGGESTIONS:\n- Name the actor\n", score)
}

// scripted returns a provider that answers by dimension, detected from the prompt.
func scripted(calls *atomic.Int32, answers map[string]func(ctx context.Context) (string, error)) provider.Provider {
	return provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		calls.Add(1)
		for dim, fn := range answers {
			if strings.Contains(req.Prompt, strings.ToUpper(dim)) {
				text, err := fn(ctx)
				if err != nil {
					return provider.Response{}, err
				}
				return provider.Response{Content: text, Provider: "test"}, nil
			}
		}
		return provider.Response{}, errors.New("unexpected prompt")
	})
}

func reply(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func block(release <-chan struct{}) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		<-release
		return answer("10"), nil
	}
}

func agents(t *testing.T, p provider.Provider, dims ...string) []agent.Agent {
	t.Helper()
	out := make([]agent.Agent, 0, len(dims))
	for _, d := range dims {
		a, err := agent.New(d, p)
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func newRunner(t *testing.T, as []agent.Agent, cfg Config, opts ...Option) *Runner {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	r, err := New(as, cfg, opts...)
	require.NoError(t, err)
	return r
}

var threeDims = []string{agent.Clarity, agent.Completeness, agent.Consistency}

func TestRunner_AllAgentsSucceed(t *testing.T) {
	var calls atomic.Int32
	p := scripted(&calls, map[string]func(context.Context) (string, error){
		agent.Clarity:      reply(answer("7")),
		agent.Completeness: reply(answer("8")),
		agent.Consistency:  reply(answer("8.5")),
	})
	r := newRunner(t, agents(t, p, threeDims...), Config{Timeout: 5 * time.Second, MaxLength: 500})

	res, err := r.Evaluate(context.Background(), registro)
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, agent.Clarity, res.Breakdown[0].Dimension)
	assert.Equal(t, agent.Completeness, res.Breakdown[1].Dimension)
	assert.Equal(t, agent.Consistency, res.Breakdown[2].Dimension)
	// (70 + 80 + 85) / 3 = 78.33
	assert.Equal(t, 78, res.OverallScore)
	assert.Equal(t, consensus.VerdictOptional, res.Verdict)
	assert.Equal(t, registro, res.Requirement)
	assert.NotEmpty(t, res.RequirementID)
	assert.Empty(t, res.Missing)
	// the same issue from three dimensions is kept once per dimension
	assert.Len(t, res.Issues, 3)
	assert.Equal(t, []string{"Name the actor"}, res.Suggestions)
}

func TestRunner_PartialFailure(t *testing.T) {
	tests := []struct {
		name    string
		failure func(context.Context) (string, error)
	}{
		{"transport error", fail(provider.Unavailable("test", errors.New("connection refused")))},
		{"unparseable answer", reply("I think this requirement is fine.")},
		{"score out of range", reply("SCORE: 42")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			p := scripted(&calls, map[string]func(context.Context) (string, error){
				agent.Clarity:      reply(answer("6")),
				agent.Completeness: reply(answer("9")),
				agent.Consistency:  tt.failure,
			})
			r := newRunner(t, agents(t, p, threeDims...), Config{Timeout: 5 * time.Second})

			res, err := r.Evaluate(context.Background(), registro)
			require.NoError(t, err)

			require.Len(t, res.Breakdown, 2)
			assert.Equal(t, 75, res.OverallScore)
			assert.False(t, res.Present(agent.Consistency))
			require.Len(t, res.Missing, 1)
			assert.Equal(t, agent.Consistency, res.Missing[0].Dimension)
			assert.NotEmpty(t, res.Missing[0].Reason)
		})
	}
}

func TestRunner_AllAgentsFail(t *testing.T) {
	var calls atomic.Int32
	p := scripted(&calls, map[string]func(context.Context) (string, error){
		agent.Clarity:      fail(provider.Unavailable("test", errors.New("down"))),
		agent.Completeness: reply("no score here"),
	})
	r := newRunner(t, agents(t, p, agent.Clarity, agent.Completeness), Config{Timeout: 5 * time.Second})

	res, err := r.Evaluate(context.Background(), registro)
	require.Error(t, err)
	assert.Empty(t, res.Breakdown)

	assert.ErrorIs(t, err, ErrNoAgentsSucceeded)
	var nas *NoAgentsSucceededError
	require.ErrorAs(t, err, &nas)
	assert.Len(t, nas.Failures, 2)
	assert.True(t, nas.Transient())
	assert.ErrorIs(t, err, provider.ErrServiceUnavailable)

	var failed *agent.EvaluationFailedError
	require.ErrorAs(t, nas.Failures[0], &failed)
	assert.Equal(t, agent.Clarity, failed.Dimension)
}

func TestRunner_AllAgentsFailToParse(t *testing.T) {
	var calls atomic.Int32
	p := scripted(&calls, map[string]func(context.Context) (string, error){
		agent.Clarity:      reply("SCORE: eleven"),
		agent.Completeness: reply(""),
	})
	r := newRunner(t, agents(t, p, agent.Clarity, agent.Completeness), Config{Timeout: 5 * time.Second})

	_, err := r.Evaluate(context.Background(), registro)
	var nas *NoAgentsSucceededError
	require.ErrorAs(t, err, &nas)
	assert.False(t, nas.Transient())
}

func TestRunner_Validation(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "  \n\t "},
		{"too long", strings.Repeat("ñ", 21)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			p := scripted(&calls, map[string]func(context.Context) (string, error){
				agent.Clarity: reply(answer("5")),
			})
			r := newRunner(t, agents(t, p, agent.Clarity), Config{Timeout: time.Second, MaxLength: 20})

			_, err := r.Evaluate(context.Background(), tt.text)
			assert.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
			assert.Equal(t, int32(0), calls.Load())
		})
	}
}

func TestRunner_MaxLengthCountsCharacters(t *testing.T) {
	var calls atomic.Int32
	p := scripted(&calls, map[string]func(context.Context) (string, error){
		agent.Clarity: reply(answer("5")),
	})
	r := newRunner(t, agents(t, p, agent.Clarity), Config{MaxLength: 20})

	_, err := r.Evaluate(context.Background(), strings.Repeat("ñ", 20))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunner_DeadlineDropsSlowAgent(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	var calls atomic.Int32
	p := scripted(&calls, map[string]func(context.Context) (string, error){
		agent.Clarity:      reply(answer("8")),
		agent.Completeness: block(release),
	})
	r := newRunner(t, agents(t, p, agent.Clarity, agent.Completeness), Config{Timeout: 100 * time.Millisecond})

	start := time.Now()
	res, err := r.Evaluate(context.Background(), registro)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 2*time.Second)
	require.Len(t, res.Breakdown, 1)
	assert.Equal(t, agent.Clarity, res.Breakdown[0].Dimension)
	assert.Equal(t, 80, res.OverallScore)
	require.Len(t, res.Missing, 1)
	assert.Equal(t, agent.Completeness, res.Missing[0].Dimension)
	assert.Contains(t, res.Missing[0].Reason, context.DeadlineExceeded.Error())
}

func TestRunner_DeadlineWithNoSurvivors(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	var calls atomic.Int32
	p := scripted(&calls, map[string]func(context.Context) (string, error){
		agent.Clarity: block(release),
	})
	r := newRunner(t, agents(t, p, agent.Clarity), Config{Timeout: 50 * time.Millisecond})

	_, err := r.Evaluate(context.Background(), registro)
	assert.ErrorIs(t, err, ErrNoAgentsSucceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_CompletionOrderDoesNotMatter(t *testing.T) {
	delays := [][]time.Duration{
		{0, 20 * time.Millisecond, 40 * time.Millisecond},
		{40 * time.Millisecond, 20 * time.Millisecond, 0},
		{20 * time.Millisecond, 0, 40 * time.Millisecond},
	}
	texts := []string{
		"SCORE: 4\nISSUES:\n- [high] Ambiguous actor\nSUGGESTIONS:\n- Define the actor",
		"SCORE: 6\nISSUES:\n- ambiguous  ACTOR\nSUGGESTIONS:\n- define the actor\n- Add error handling",
		"SCORE: 9\nSUGGESTIONS:\n- Add error handling",
	}

	var first consensus.Result
	for i, d := range delays {
		answers := make(map[string]func(context.Context) (string, error))
		for j, dim := range threeDims {
			delay, text := d[j], texts[j]
			answers[dim] = func(context.Context) (string, error) {
				time.Sleep(delay)
				return text, nil
			}
		}
		var calls atomic.Int32
		r := newRunner(t, agents(t, scripted(&calls, answers), threeDims...), Config{Timeout: 5 * time.Second})

		res, err := r.EvaluateRequirement(context.Background(), agent.Requirement{ID: "REQ-1", Text: registro})
		require.NoError(t, err)
		if i == 0 {
			first = res
			continue
		}
		assert.Equal(t, first, res, "delays %v", d)
	}
	assert.Equal(t, []string{"Define the actor", "Add error handling"}, first.Suggestions)
}

func TestRunner_Sequential(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		calls    atomic.Int32
	)
	slow := func(context.Context) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(10 * time.Millisecond)
		return answer("5"), nil
	}
	p := scripted(&calls, map[string]func(context.Context) (string, error){
		agent.Clarity:      slow,
		agent.Completeness: slow,
		agent.Consistency:  slow,
	})
	r := newRunner(t, agents(t, p, threeDims...), Config{Timeout: 5 * time.Second, Concurrency: 1})

	res, err := r.Evaluate(context.Background(), registro)
	require.NoError(t, err)
	assert.Len(t, res.Breakdown, 3)
	assert.Equal(t, int32(1), peak.Load())
}

func TestRunner_Callbacks(t *testing.T) {
	var calls atomic.Int32
	p := scripted(&calls, map[string]func(context.Context) (string, error){
		agent.Clarity:      reply(answer("7")),
		agent.Completeness: fail(provider.Unavailable("test", errors.New("down"))),
	})

	var (
		mu        sync.Mutex
		started   []string
		completed []string
		failed    []string
	)
	cb := &Callbacks{
		OnAgentStart: func(dim string) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, dim)
		},
		OnAgentComplete: func(dim string, j agent.Judgment, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			completed = append(completed, fmt.Sprintf("%s=%d", dim, j.Score))
		},
		OnAgentError: func(dim string, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, dim)
		},
	}
	r := newRunner(t, agents(t, p, agent.Clarity, agent.Completeness), Config{Timeout: 5 * time.Second}, WithCallbacks(cb))

	_, err := r.Evaluate(context.Background(), registro)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{agent.Clarity, agent.Completeness}, started)
	assert.Equal(t, []string{"clarity=70"}, completed)
	assert.Equal(t, []string{agent.Completeness}, failed)
}

type refinerFunc func(ctx context.Context, req agent.Requirement) (string, error)

func (f refinerFunc) Refine(ctx context.Context, req agent.Requirement) (string, error) {
	return f(ctx, req)
}

func TestRunner_Refinement(t *testing.T) {
	tests := []struct {
		name        string
		score       string
		refiner     refinerFunc
		wantRefined string
		wantCalled  bool
	}{
		{
			name:  "low score is refined",
			score: "2",
			refiner: func(_ context.Context, req agent.Requirement) (string, error) {
				return "The administrator can register a user with name, email and password.", nil
			},
			wantRefined: "The administrator can register a user with name, email and password.",
			wantCalled:  true,
		},
		{
			name:  "refinement failure is ignored",
			score: "2",
			refiner: func(context.Context, agent.Requirement) (string, error) {
				return "", errors.New("boom")
			},
			wantCalled: true,
		},
		{
			name:  "good score is not refined",
			score: "8",
			refiner: func(context.Context, agent.Requirement) (string, error) {
				return "unused", nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			p := scripted(&calls, map[string]func(context.Context) (string, error){
				agent.Clarity: reply(answer(tt.score)),
			})

			var called atomic.Bool
			rf := refinerFunc(func(ctx context.Context, req agent.Requirement) (string, error) {
				called.Store(true)
				assert.Equal(t, registro, req.Text)
				return tt.refiner(ctx, req)
			})
			r := newRunner(t, agents(t, p, agent.Clarity), Config{Timeout: 5 * time.Second}, WithRefiner(rf))

			res, err := r.Evaluate(context.Background(), registro)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalled, called.Load())
			assert.Equal(t, tt.wantRefined, res.RefinedRequirement)
		})
	}
}

func TestNew(t *testing.T) {
	p := provider.ProviderFunc(func(context.Context, provider.Request) (provider.Response, error) {
		return provider.Response{}, nil
	})

	_, err := New(nil, Config{})
	assert.Error(t, err)

	_, err = New(agents(t, p, agent.Clarity, agent.Clarity), Config{})
	assert.ErrorContains(t, err, "duplicate")

	r, err := New(agents(t, p, agent.Consistency, agent.Clarity), Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{agent.Consistency, agent.Clarity}, r.Dimensions())
}
