package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"quiz-engine/internal/httpapi"
	"quiz-engine/internal/opentdb"
	"quiz-engine/internal/platform/logger"
	"quiz-engine/internal/quiz"
)

const (
	defaultImportAmount = 20
	defaultImportTopic  = "General Knowledge"
)

// Store is the slice of the quiz store the admin commands touch.
type Store interface {
	quiz.BankSeeder
	ListActiveMockTests(ctx context.Context) ([]quiz.MockTest, error)
	Close() error
}

// TriviaSource fetches raw multiple-choice questions. *opentdb.Client satisfies it.
type TriviaSource interface {
	Fetch(ctx context.Context, query opentdb.Query) ([]opentdb.RawQuestion, error)
}

// Env carries the dependencies of Run. OpenStore is called lazily so commands
// that do not touch the bank never open a connection.
type Env struct {
	OpenStore func(ctx context.Context) (Store, error)
	Trivia    TriviaSource
	JWTSecret []byte
	TokenTTL  time.Duration
	Now       func() time.Time
	Log       *logger.Logger
}

// ErrUsage is returned after usage text has been written to out.
var ErrUsage = errors.New("usage")

func Run(ctx context.Context, args []string, out io.Writer, env Env) error {
	if env.Log == nil {
		env.Log = logger.NewNop()
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	if len(args) == 0 {
		printUsage(out)
		return ErrUsage
	}

	command, rest := strings.ToLower(args[0]), args[1:]
	switch command {
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	case "seed":
		return runSeed(ctx, rest, out, env)
	case "import-opentdb":
		return runImport(ctx, rest, out, env)
	case "mock-tests":
		return runMockTests(ctx, out, env)
	case "token":
		return runToken(rest, out, env)
	default:
		fmt.Fprintf(out, "unknown command %q\n\n", command)
		printUsage(out)
		return ErrUsage
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: quiz-cli <command> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  seed <file.yaml>                    load topics, questions and mock tests")
	fmt.Fprintln(out, "  import-opentdb [flags]              import multiple-choice questions from OpenTDB")
	fmt.Fprintln(out, "  mock-tests                          list active mock tests")
	fmt.Fprintln(out, "  token [-ttl 24h] <user_id>          issue a bearer token for the quiz API")
}

func withStore(ctx context.Context, env Env, fn func(Store) error) error {
	if env.OpenStore == nil {
		return errors.New("no store configured")
	}
	store, err := env.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runSeed(ctx context.Context, args []string, out io.Writer, env Env) error {
	if len(args) != 1 {
		fmt.Fprintln(out, "usage: seed <file.yaml>")
		return ErrUsage
	}

	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	decoded, err := decodeSeedFile(file)
	if err != nil {
		return err
	}
	plan, err := decoded.plan()
	if err != nil {
		return err
	}

	return withStore(ctx, env, func(store Store) error {
		if err := store.SeedTopics(ctx, plan.topics); err != nil {
			return err
		}
		changed, err := store.SeedQuestions(ctx, plan.questions)
		if err != nil {
			return err
		}
		for _, seed := range plan.mockTests {
			if err := store.SeedMockTest(ctx, seed.mockTest, seed.questionIDs); err != nil {
				return err
			}
		}

		env.Log.Info("seed applied",
			"file", args[0],
			"topics", len(plan.topics),
			"questions", len(plan.questions),
			"questions_changed", changed,
			"mock_tests", len(plan.mockTests),
		)
		fmt.Fprintf(out, "seeded %d topics, %d questions (%d written, %d locked by attempts), %d mock tests\n",
			len(plan.topics), len(plan.questions), changed, len(plan.questions)-changed, len(plan.mockTests))
		return nil
	})
}

func runImport(ctx context.Context, args []string, out io.Writer, env Env) error {
	flags := flag.NewFlagSet("import-opentdb", flag.ContinueOnError)
	flags.SetOutput(out)
	amount := flags.Int("amount", defaultImportAmount, "number of questions to fetch (max 50)")
	difficulty := flags.String("difficulty", "", "easy, medium or hard (empty for any)")
	category := flags.Int("category", 0, "OpenTDB category id")
	topicName := flags.String("topic", defaultImportTopic, "topic the questions are filed under")
	if err := flags.Parse(args); err != nil {
		return ErrUsage
	}

	if *difficulty != "" && !quiz.Difficulty(*difficulty).Valid() {
		return fmt.Errorf("invalid difficulty %q", *difficulty)
	}
	if env.Trivia == nil {
		env.Trivia = opentdb.NewClient(nil)
	}

	raw, err := env.Trivia.Fetch(ctx, opentdb.Query{
		Amount:     *amount,
		Difficulty: *difficulty,
		Category:   *category,
	})
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}

	topic := quiz.Topic{
		ID:   quiz.StableID("topic", *topicName),
		Name: strings.TrimSpace(*topicName),
	}
	questions := quiz.BuildQuestions(raw, topic.ID)
	if len(questions) == 0 {
		fmt.Fprintf(out, "no usable questions in %d fetched\n", len(raw))
		return nil
	}

	return withStore(ctx, env, func(store Store) error {
		if err := store.SeedTopics(ctx, []quiz.Topic{topic}); err != nil {
			return err
		}
		changed, err := store.SeedQuestions(ctx, questions)
		if err != nil {
			return err
		}
		env.Log.Info("opentdb import applied", "fetched", len(raw), "usable", len(questions), "written", changed)
		fmt.Fprintf(out, "imported %d of %d fetched questions into %q\n", changed, len(raw), topic.Name)
		return nil
	})
}

func runMockTests(ctx context.Context, out io.Writer, env Env) error {
	return withStore(ctx, env, func(store Store) error {
		mockTests, err := store.ListActiveMockTests(ctx)
		if err != nil {
			return err
		}
		if len(mockTests) == 0 {
			fmt.Fprintln(out, "No active mock tests.")
			return nil
		}

		writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "ID\tTITLE\tQUESTIONS\tMARKS\tPENALTY\tMINUTES")
		for _, mockTest := range mockTests {
			fmt.Fprintf(writer, "%s\t%s\t%d\t%g\t%g\t%d\n",
				mockTest.ID,
				mockTest.Title,
				mockTest.TotalQuestions,
				mockTest.TotalMarks,
				mockTest.NegativeMark,
				mockTest.DurationMinutes,
			)
		}
		return writer.Flush()
	})
}

func runToken(args []string, out io.Writer, env Env) error {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	flags.SetOutput(out)
	ttl := flags.Duration("ttl", env.TokenTTL, "token lifetime (0 for no expiry)")
	if err := flags.Parse(args); err != nil {
		return ErrUsage
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(out, "usage: token [-ttl 24h] <user_id>")
		return ErrUsage
	}

	token, err := httpapi.IssueToken(env.JWTSecret, flags.Arg(0), *ttl, env.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
