package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexbotov/arcade/internal/audit"
	"github.com/alexbotov/arcade/internal/auth"
	"github.com/alexbotov/arcade/internal/config"
	"github.com/alexbotov/arcade/internal/control"
	"github.com/alexbotov/arcade/internal/flags"
	"github.com/alexbotov/arcade/internal/game"
	"github.com/alexbotov/arcade/internal/ledger"
	"github.com/alexbotov/arcade/internal/metrics"
	"github.com/alexbotov/arcade/internal/rng"
	"github.com/alexbotov/arcade/internal/store"
)

type testServer struct {
	srv    *httptest.Server
	auth   *auth.Service
	ledger *ledger.Service
}

func newTestServer(t *testing.T, src rng.Source) *testServer {
	t.Helper()

	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditSvc := audit.New(nil, logger)
	m := metrics.New()

	ledgerSvc := ledger.New(ledger.NewMemoryStore(), auditSvc, cfg.Game.StartingBalance)
	controlSvc := control.New(flags.NewMemoryStore(), auditSvc)
	engine := game.New(game.Dependencies{
		Config:     cfg.Game,
		Ledger:     ledgerSvc,
		RNG:        src,
		Control:    controlSvc,
		Sessions:   store.NewMemorySessions(),
		Challenges: store.NewMemoryChallenges(),
		Rounds:     store.NewMemoryRounds(),
		Audit:      auditSvc,
		Metrics:    m,
		Logger:     logger,
	})
	authSvc := auth.New(&config.AuthConfig{JWTSecret: "test-secret", TokenExpiry: time.Hour})

	h := New(Dependencies{
		Auth:    authSvc,
		Ledger:  ledgerSvc,
		Engine:  engine,
		Control: controlSvc,
		Audit:   auditSvc,
		RNG:     rng.New(),
		Metrics: m,
		Logger:  logger,
	})

	srv := httptest.NewServer(h.SetupRouter())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, auth: authSvc, ledger: ledgerSvc}
}

func (ts *testServer) token(t *testing.T, playerID string, admin bool) string {
	t.Helper()
	token, _, err := ts.auth.IssueToken(playerID, admin)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, rng.New())

	t.Run("MissingHeader", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/balance", "", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", status)
		}
		if body["error"] == "" {
			t.Error("Expected an error message")
		}
	})

	t.Run("BadToken", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodGet, "/balance", "not-a-token", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", status)
		}
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		expired := auth.New(&config.AuthConfig{JWTSecret: "test-secret", TokenExpiry: -time.Minute})
		token, _, err := expired.IssueToken("late", false)
		if err != nil {
			t.Fatalf("Failed to issue token: %v", err)
		}
		status, body := ts.do(t, http.MethodGet, "/balance", token, nil)
		if status != http.StatusUnauthorized || body["error"] != "session expired" {
			t.Errorf("Expected 401 session expired, got %d %v", status, body)
		}
	})

	t.Run("FirstContactProvisions", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/balance", ts.token(t, "newcomer", false), nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if body["playerId"] != "newcomer" || body["balance"] != float64(1000) {
			t.Errorf("Unexpected balance response: %v", body)
		}
	})
}

func TestPublicRoutes(t *testing.T) {
	ts := newTestServer(t, rng.New())

	t.Run("Health", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/health", "", nil)
		if status != http.StatusOK || body["status"] != "healthy" {
			t.Errorf("Expected healthy, got %d %v", status, body)
		}
	})

	t.Run("GameInfo", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/roulette/info", "", nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}
		if body["game"] != "roulette" || body["minBet"] != float64(10) || body["maxBet"] != float64(10000) {
			t.Errorf("Unexpected info: %v", body)
		}
	})

	t.Run("UnknownGameInfo", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodGet, "/poker/info", "", nil)
		if status != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", status)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		ts.do(t, http.MethodGet, "/health", "", nil)

		resp, err := http.Get(ts.srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		if !strings.Contains(string(data), `route="/health"`) {
			t.Error("Expected request metrics labelled by route template")
		}
	})
}

func TestPlaySlots(t *testing.T) {
	// three SEVENs
	ts := newTestServer(t, rng.NewSequence(nil, []int64{0, 0, 0}))
	token := ts.token(t, "alice", false)

	t.Run("RejectsUnknownFields", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/slots", token, `{"bet":100,"lines":5}`)
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", status)
		}
	})

	t.Run("RejectsBetOutsideLimits", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/slots", token, map[string]int64{"bet": 5})
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", status)
		}
	})

	t.Run("RejectsInsufficientFunds", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/slots", token, map[string]int64{"bet": 5000})
		if status != http.StatusBadRequest || body["error"] != ledger.ErrInsufficientFunds.Error() {
			t.Errorf("Expected 400 insufficient funds, got %d %v", status, body)
		}
	})

	t.Run("Jackpot", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/slots", token, map[string]int64{"bet": 100})
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if body["tier"] != "jackpot" || body["payout"] != float64(5000) || body["balance"] != float64(5900) {
			t.Errorf("Unexpected result: %v", body)
		}
		if body["won"] != true {
			t.Error("Expected a win")
		}
	})

	t.Run("HistoryRecordsRound", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/history", token, nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}
		rounds, _ := body["rounds"].([]interface{})
		if len(rounds) != 1 {
			t.Errorf("Expected 1 round, got %d", len(rounds))
		}
	})

	t.Run("LedgerRecordsWagerAndPayout", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/ledger", token, nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}
		entries, _ := body["entries"].([]interface{})
		// opening grant, wager, payout
		if len(entries) != 3 {
			t.Errorf("Expected 3 entries, got %d", len(entries))
		}
	})
}

func TestPlayRoulette(t *testing.T) {
	// not zero, then number index 6 lands on 7
	ts := newTestServer(t, rng.NewSequence([]float64{0.5}, []int64{6}))
	token := ts.token(t, "bob", false)

	t.Run("OutsideBetWithNumber", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/roulette", token, map[string]interface{}{"bet": 100, "betType": "red", "number": 3})
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", status)
		}
	})

	t.Run("UnknownBetType", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/roulette", token, map[string]interface{}{"bet": 100, "betType": "corner"})
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", status)
		}
	})

	t.Run("StraightUp", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/roulette", token, map[string]interface{}{"bet": 100, "betType": "number", "number": 7})
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if body["spinResult"] != float64(7) || body["color"] != "red" || body["payout"] != float64(3600) {
			t.Errorf("Unexpected result: %v", body)
		}
		if body["balance"] != float64(4500) {
			t.Errorf("Expected balance 4500, got %v", body["balance"])
		}
	})
}

func TestPlayRouletteRangeAliases(t *testing.T) {
	// spins land on 7 then 21
	ts := newTestServer(t, rng.NewSequence([]float64{0.5, 0.5}, []int64{6, 20}))
	token := ts.token(t, "bob", false)

	for _, tt := range []struct {
		alias, canonical string
		balance          float64
	}{
		{"1-18", "low", 1100},
		{"19-36", "high", 1200},
	} {
		status, body := ts.do(t, http.MethodPost, "/roulette", token, map[string]interface{}{"bet": 100, "betType": tt.alias})
		if status != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %v", tt.alias, status, body)
		}
		if body["betType"] != tt.canonical || body["payout"] != float64(200) {
			t.Errorf("%s: unexpected result: %v", tt.alias, body)
		}
		if body["balance"] != tt.balance {
			t.Errorf("%s: expected balance %v, got %v", tt.alias, tt.balance, body["balance"])
		}
	}
}

func TestChickenCross(t *testing.T) {
	// seed draw 41 gives seed 42; the step draw of 0 always survives
	ts := newTestServer(t, rng.NewSequence([]float64{0}, []int64{41}))
	token := ts.token(t, "carol", false)
	other := ts.token(t, "dave", false)

	t.Run("InvalidIntent", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/chickencross", token, map[string]interface{}{"intent": "JUMP"})
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", status)
		}
		status, _ = ts.do(t, http.MethodPost, "/chickencross", token, map[string]interface{}{"intent": "MOVE"})
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400 for MOVE without bet or seed, got %d", status)
		}
	})

	t.Run("NoActiveSession", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/chickencross/active", token, nil)
		if status != http.StatusOK || body["active"] != false {
			t.Errorf("Expected inactive, got %d %v", status, body)
		}
	})

	status, body := ts.do(t, http.MethodPost, "/chickencross", token, map[string]interface{}{"intent": "MOVE", "bet": 100})
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on start, got %d: %v", status, body)
	}
	session := body["session"].(map[string]interface{})
	if session["seed"] != float64(42) || session["state"] != "ACTIVE" || body["balance"] != float64(900) {
		t.Fatalf("Unexpected start result: %v", body)
	}

	t.Run("SecondStartConflicts", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/chickencross", token, map[string]interface{}{"intent": "MOVE", "bet": 100})
		if status != http.StatusConflict {
			t.Errorf("Expected 409, got %d", status)
		}
	})

	t.Run("ActiveSession", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/chickencross/active", token, nil)
		if status != http.StatusOK || body["active"] != true || body["session"] == nil {
			t.Errorf("Expected active session, got %d %v", status, body)
		}
	})

	t.Run("OtherPlayerForbidden", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodGet, "/chickencross?seed=42", other, nil)
		if status != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", status)
		}
		status, _ = ts.do(t, http.MethodPost, "/chickencross", other, map[string]interface{}{"intent": "CASHOUT", "seed": 42})
		if status != http.StatusForbidden {
			t.Errorf("Expected 403 on cashout, got %d", status)
		}
	})

	t.Run("UnknownSeed", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodGet, "/chickencross?seed=7", token, nil)
		if status != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", status)
		}
	})

	t.Run("AdvanceThenCashout", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/chickencross", token, map[string]interface{}{"intent": "MOVE", "seed": 42})
		if status != http.StatusOK {
			t.Fatalf("Expected 200 on move, got %d: %v", status, body)
		}
		session := body["session"].(map[string]interface{})
		if session["progressIndex"] != float64(1) || session["state"] != "ACTIVE" {
			t.Fatalf("Expected to survive step 1, got %v", session)
		}

		payout := game.ChickenPayout(config.Default().Game.Chicken, 100, 42, 1)
		status, body = ts.do(t, http.MethodPost, "/chickencross", token, map[string]interface{}{"intent": "CASHOUT", "seed": 42})
		if status != http.StatusOK {
			t.Fatalf("Expected 200 on cashout, got %d: %v", status, body)
		}
		if body["credited"] != float64(payout) || body["balance"] != float64(900+payout) {
			t.Errorf("Expected credit %d, got %v", payout, body)
		}

		status, _ = ts.do(t, http.MethodPost, "/chickencross", token, map[string]interface{}{"intent": "CASHOUT", "seed": 42})
		if status != http.StatusConflict {
			t.Errorf("Expected 409 on closed session, got %d", status)
		}
	})
}

func TestCoinflip(t *testing.T) {
	// initiator wins the flip
	ts := newTestServer(t, rng.NewSequence(nil, []int64{0}))
	erin := ts.token(t, "erin", false)
	frank := ts.token(t, "frank", false)

	status, body := ts.do(t, http.MethodPost, "/coinflip", erin, map[string]interface{}{"intent": "CREATE", "bet": 100})
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", status, body)
	}
	id := body["challenge"].(map[string]interface{})["id"].(string)

	t.Run("ListsOpenChallenge", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/coinflip", frank, nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}
		if list, _ := body["challenges"].([]interface{}); len(list) != 1 {
			t.Errorf("Expected 1 open challenge, got %v", body["challenges"])
		}
	})

	t.Run("SelfAccept", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/coinflip", erin, map[string]interface{}{"intent": "ACCEPT", "challengeId": id})
		if status != http.StatusConflict {
			t.Errorf("Expected 409, got %d", status)
		}
	})

	t.Run("CancelByStranger", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/coinflip", frank, map[string]interface{}{"intent": "CANCEL", "challengeId": id})
		if status != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", status)
		}
	})

	t.Run("Accept", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/coinflip", frank, map[string]interface{}{"intent": "ACCEPT", "challengeId": id})
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if body["won"] != false || body["balance"] != float64(900) {
			t.Errorf("Expected accepter to lose, got %v", body)
		}

		_, body = ts.do(t, http.MethodGet, "/balance", erin, nil)
		if body["balance"] != float64(1100) {
			t.Errorf("Expected initiator balance 1100, got %v", body["balance"])
		}
	})

	t.Run("AcceptTwice", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/coinflip", frank, map[string]interface{}{"intent": "ACCEPT", "challengeId": id})
		if status != http.StatusConflict {
			t.Errorf("Expected 409, got %d", status)
		}
	})

	t.Run("UnknownChallenge", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/coinflip", frank, map[string]interface{}{"intent": "ACCEPT", "challengeId": "00000000-0000-0000-0000-000000000000"})
		if status != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", status)
		}
	})

	t.Run("MalformedChallengeID", func(t *testing.T) {
		for _, intent := range []string{"ACCEPT", "CANCEL"} {
			status, _ := ts.do(t, http.MethodPost, "/coinflip", frank, map[string]interface{}{"intent": intent, "challengeId": "abc"})
			if status != http.StatusNotFound {
				t.Errorf("%s: expected 404, got %d", intent, status)
			}
		}
	})
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, rng.New())
	admin := ts.token(t, "ops", true)
	player := ts.token(t, "gina", false)

	t.Run("RequiresAdmin", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPut, "/admin/reduced-luck/gina", player, nil)
		if status != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", status)
		}
	})

	t.Run("ReducedLuck", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPut, "/admin/reduced-luck/gina", admin, nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}
		_, body := ts.do(t, http.MethodGet, "/admin/reduced-luck", admin, nil)
		if list, _ := body["players"].([]interface{}); len(list) != 1 || list[0] != "gina" {
			t.Errorf("Expected gina flagged, got %v", body)
		}

		for i := 0; i < 20; i++ {
			status, body := ts.do(t, http.MethodPost, "/luckywheel", player, map[string]int64{"bet": 10})
			if status != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %v", status, body)
			}
			if body["payout"] != float64(0) {
				t.Fatalf("Expected a forced loss, got %v", body)
			}
		}

		status, _ = ts.do(t, http.MethodDelete, "/admin/reduced-luck/gina", admin, nil)
		if status != http.StatusOK {
			t.Errorf("Expected 200, got %d", status)
		}
	})

	t.Run("DisableGame", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPut, "/admin/games/slots/disabled", admin, map[string]string{"reason": "maintenance"})
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}

		status, _ = ts.do(t, http.MethodPost, "/slots", player, map[string]int64{"bet": 10})
		if status != http.StatusForbidden {
			t.Errorf("Expected 403 while disabled, got %d", status)
		}

		_, body := ts.do(t, http.MethodGet, "/admin/games/disabled", admin, nil)
		if list, _ := body["games"].([]interface{}); len(list) != 1 {
			t.Errorf("Expected 1 disabled game, got %v", body)
		}

		status, _ = ts.do(t, http.MethodDelete, "/admin/games/slots/disabled", admin, nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}
		status, _ = ts.do(t, http.MethodPost, "/slots", player, map[string]int64{"bet": 10})
		if status != http.StatusOK {
			t.Errorf("Expected 200 after enabling, got %d", status)
		}
	})

	t.Run("DisableUnknownGame", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPut, "/admin/games/poker/disabled", admin, nil)
		if status != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", status)
		}
	})

	t.Run("Grant", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/admin/players/harry/grant", admin, map[string]int64{"amount": 250})
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %v", status, body)
		}
		if body["balance"] != float64(1250) {
			t.Errorf("Expected 1250, got %v", body["balance"])
		}

		status, _ = ts.do(t, http.MethodPost, "/admin/players/harry/grant", admin, map[string]int64{"amount": -5})
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400 for negative grant, got %d", status)
		}
	})

	t.Run("RejectedGrantCreatesNoAccount", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/admin/players/iris/grant", admin, map[string]int64{"amount": 0})
		if status != http.StatusBadRequest {
			t.Errorf("Expected 400 for zero grant, got %d", status)
		}
		if _, err := ts.ledger.GetBalance(context.Background(), "iris"); !errors.Is(err, ledger.ErrPlayerNotFound) {
			t.Errorf("Expected no account for iris, got %v", err)
		}
	})

	t.Run("AuditTrail", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/admin/audit?type=game_disabled", admin, nil)
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}
		if events, _ := body["events"].([]interface{}); len(events) == 0 {
			t.Error("Expected the game_disabled event")
		}
	})
}
