// Command simdemo replays randomized trading sessions against a running
// tradebook-api: a pool of workers opens one account per simulated owner
// and streams deposits, withdrawals and orders at it. Rejections for
// insufficient funds or shares are part of the session, not failures.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tradebook.org/internal/ledger"
	"tradebook.org/internal/ledger/remote"
	"tradebook.org/internal/sim"
)

func main() {
	var (
		base    = flag.String("base", "http://localhost:8080", "API base URL")
		owners  = flag.Int("owners", 0, "simulated owners (0 uses the scenario cast)")
		steps   = flag.Int("steps", 25, "actions per session")
		seed    = flag.Int("seed", 0, "random seed (0 uses the clock)")
		workers = flag.Int("workers", 3, "concurrent sessions")
		model   = flag.String("model", "gpt-4o-mini", "OpenAI model for the recap (optional)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	baseSeed := int64(*seed)
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}

	traders := sim.NewGenerator(baseSeed).Traders()
	if *owners > 0 {
		traders = make([]sim.Trader, *owners)
		for i := range traders {
			traders[i] = sim.Trader{
				Owner:   fmt.Sprintf("sim-%03d", i+1),
				Desk:    "Synthetic flow",
				Initial: ledger.MustMoney("20000.00"),
			}
		}
	}

	log.Printf("Launching sim demo: base=%s sessions=%d steps=%d workers=%d seed=%d",
		*base, len(traders), *steps, *workers, baseSeed)

	var (
		statsMu     sync.Mutex
		total       sim.Counter
		rateLimited int64
		transport   int64
	)

	start := time.Now()
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				counter := runSession(ctx, *base, traders[idx], idx, baseSeed, *steps, &rateLimited, &transport)
				statsMu.Lock()
				total.Actions += counter.Actions
				total.Accepted += counter.Accepted
				total.Rejected += counter.Rejected
				total.SharesTraded += counter.SharesTraded
				total.CashMoved = total.CashMoved.Add(counter.CashMoved)
				statsMu.Unlock()
			}
		}()
	}

	for idx := range traders {
		select {
		case <-ctx.Done():
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	log.Printf("Run complete: %d/%d actions accepted (%d rejected, %d rate_limited, %d transport_errors), %d shares traded, %s cash moved",
		total.Accepted, total.Actions, total.Rejected,
		atomic.LoadInt64(&rateLimited), atomic.LoadInt64(&transport),
		total.SharesTraded, total.CashMoved)

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && total.Actions > 0 {
		summary, err := sim.Summarize(ctx, sim.SummaryStats{
			Accepted:     total.Accepted,
			Rejected:     total.Rejected,
			SharesTraded: total.SharesTraded,
			CashMoved:    total.CashMoved.String(),
			Duration:     time.Since(start),
		}, sim.SummaryRequest{APIKey: key, Model: *model})
		if err != nil {
			log.Printf("recap error: %v", err)
		} else {
			log.Println("Desk recap:")
			log.Println(summary)
		}
	} else {
		log.Println("Set OPENAI_API_KEY for a narrative desk recap.")
	}
}

// runSession opens one account and plays steps generated actions at it.
// Each session draws from its own seeded generator so a fixed -seed replays
// the same tape regardless of worker interleaving.
func runSession(ctx context.Context, base string, trader sim.Trader, idx int, baseSeed int64, steps int, rateLimited, transport *int64) sim.Counter {
	var counter sim.Counter

	client := remote.New(base)
	if err := client.Authenticate(ctx, trader.Owner); err != nil {
		log.Printf("session %d (%s): authenticate: %v", idx, trader.Owner, err)
		return counter
	}
	st, err := client.Open(ctx, trader.Owner, trader.Initial)
	if err != nil {
		log.Printf("session %d (%s): open: %v", idx, trader.Owner, err)
		return counter
	}
	log.Printf("session %d (%s, %s): account %s funded with %s",
		idx, trader.Owner, trader.Desk, st.ID, trader.Initial)

	gen := sim.NewGenerator(baseSeed + int64(idx)*9973)
	pace := rand.New(rand.NewSource(baseSeed + int64(idx)*7919))

	for step := 0; step < steps; step++ {
		select {
		case <-ctx.Done():
			return counter
		default:
		}

		action := gen.NextAction()
		err := doAction(ctx, client, st.ID, action)
		counter.Record(action, err == nil)
		if err != nil {
			classify(idx, trader.Owner, action, err, rateLimited, transport)
		}
		time.Sleep(time.Duration(20+pace.Intn(80)) * time.Millisecond)
	}

	pf, err := client.PortfolioValue(ctx, st.ID)
	if err != nil {
		log.Printf("session %d (%s): portfolio: %v", idx, trader.Owner, err)
		return counter
	}
	log.Printf("session %d (%s): %d/%d accepted, cash %s, portfolio %s, pnl %s",
		idx, trader.Owner, counter.Accepted, counter.Actions,
		pf.CashBalance, pf.PortfolioValue, pf.ProfitOrLoss)
	return counter
}

func doAction(ctx context.Context, client *remote.Client, accountID string, action sim.Action) error {
	idem := uuid.NewString()
	switch action.Kind {
	case ledger.KindDeposit:
		_, err := client.Deposit(ctx, accountID, action.Amount, idem)
		return err
	case ledger.KindWithdraw:
		_, err := client.Withdraw(ctx, accountID, action.Amount, idem)
		return err
	case ledger.KindBuy:
		_, err := client.Buy(ctx, accountID, action.Symbol, action.Quantity, idem)
		return err
	default:
		_, err := client.Sell(ctx, accountID, action.Symbol, action.Quantity, idem)
		return err
	}
}

// classify separates expected rejections from transport trouble. Funds and
// share rejections get a narrative line; anything else is counted and, for
// rate limiting, backed off.
func classify(idx int, owner string, action sim.Action, err error, rateLimited, transport *int64) {
	if errors.Is(err, ledger.ErrInsufficientFunds) || errors.Is(err, ledger.ErrInsufficientShares) ||
		errors.Is(err, ledger.ErrUnknownSymbol) {
		log.Printf("session %d (%s): %s rejected (%s): %v", idx, owner, describe(action), action.Narrative, err)
		return
	}
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		atomic.AddInt64(rateLimited, 1)
		time.Sleep(250 * time.Millisecond)
		return
	}
	atomic.AddInt64(transport, 1)
	log.Printf("session %d (%s): %s failed: %v", idx, owner, describe(action), err)
}

func describe(action sim.Action) string {
	switch action.Kind {
	case ledger.KindDeposit, ledger.KindWithdraw:
		return fmt.Sprintf("%s %s", action.Kind, action.Amount)
	default:
		return fmt.Sprintf("%s %d %s", action.Kind, action.Quantity, action.Symbol)
	}
}
