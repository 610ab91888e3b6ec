package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/momoworks/momo-ops/internal/adapter/handler"
	"github.com/momoworks/momo-ops/internal/adapter/storage"
	"github.com/momoworks/momo-ops/internal/config"
	"github.com/momoworks/momo-ops/internal/core/service"
	"github.com/momoworks/momo-ops/pkg/client"
)

const fixtureYAML = `
stores:
  - key: park
    name: Park Street
    address: 12 Park Street
production_houses:
  - key: kitchen
    name: Central Kitchen
employees:
  - name: Asha
    email: asha@momo.test
    role: manager
    manager_email: tashi@momo.test
    location: park
    hourly_rate: 250
    password: asha-password
  - name: Pema
    email: pema@momo.test
    role: employee
    manager_email: asha@momo.test
    location: park
    hourly_rate: 120.50
items:
  - location: park
    sku: MOMO-VEG
    name: Veg momo
    category: finished_good
    unit: pcs
    unit_cost: 12.5
    threshold: 5
    initial_quantity: 20
  - location: park
    sku: CHUTNEY
    name: Tomato chutney
    category: finished_good
    unit: jar
    initial_quantity: 4
    threshold: 6
  - location: kitchen
    sku: FLOUR
    name: Flour
    category: raw_material
    unit: kg
    initial_quantity: 100
`

const countsYAML = `
counts:
  - sku: MOMO-VEG
    counted: 18
  - sku: CHUTNEY
    counted: 4
`

type cliEnv struct {
	server    *httptest.Server
	tokenFile string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.JWTSecret = "cli-secret"
	cfg.AnonKey = "cli-anon"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(cfg, storage.NewMemoryStore(), storage.NewMemoryCache(time.Minute, 10*time.Minute), logger)
	svc.SetClock(func() time.Time { return time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC) })

	_, err := svc.Employees.Bootstrap(context.Background(), service.EmployeeInput{
		Name: "Tashi", Email: "tashi@momo.test", Password: "tashi-password", HourlyRate: decimal.NewFromInt(400),
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	srv := httptest.NewServer(handler.NewHTTPHandler(svc, logger).Router())
	t.Cleanup(srv.Close)
	return &cliEnv{server: srv, tokenFile: filepath.Join(t.TempDir(), "token")}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--server", e.server.URL, "--token-file", e.tokenFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoginSavesToken(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "login", "--email", "tashi@momo.test", "--password", "tashi-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "signed in as Tashi (cluster_head)") {
		t.Errorf("unexpected output %q", out)
	}
	info, err := os.Stat(env.tokenFile)
	if err != nil {
		t.Fatalf("token file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	if _, err := env.run(t, "login", "--email", "tashi@momo.test", "--password", "wrong-password"); err == nil {
		t.Error("expected wrong password to fail")
	}
}

func TestSeedStockAndRecalibrate(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "login", "--email", "tashi@momo.test", "--password", "tashi-password"); err != nil {
		t.Fatalf("login: %v", err)
	}

	out, err := env.run(t, "seed", writeFile(t, "fixtures.yaml", fixtureYAML))
	if err != nil {
		t.Fatalf("seed: %v\n%s", err, out)
	}
	for _, want := range []string{"store ", "production_house ", "employee ", "item "} {
		if !strings.Contains(out, want) {
			t.Errorf("seed output missing %q:\n%s", want, out)
		}
	}

	c := client.New(env.server.URL, client.WithToken(strings.TrimSpace(readFile(t, env.tokenFile))))
	stores, err := c.Stores(context.Background())
	if err != nil {
		t.Fatalf("stores: %v", err)
	}
	if len(stores) != 1 || stores[0].Name != "Park Street" {
		t.Fatalf("stores = %+v", stores)
	}
	park := stores[0].ID

	if _, err := client.New(env.server.URL).Login(context.Background(), "asha@momo.test", "asha-password"); err != nil {
		t.Errorf("seeded manager cannot sign in: %v", err)
	}

	out, err = env.run(t, "stock", "--location", park, "--month", "2024-03")
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if !strings.Contains(out, "MOMO-VEG") || !strings.Contains(out, "CHUTNEY") {
		t.Errorf("stock table missing items:\n%s", out)
	}
	if strings.Contains(out, "FLOUR") {
		t.Errorf("stock table leaked another location:\n%s", out)
	}
	if !strings.Contains(out, "LOW") {
		t.Errorf("chutney below threshold should be flagged:\n%s", out)
	}

	xlsx := filepath.Join(t.TempDir(), "stock.xlsx")
	if _, err := env.run(t, "stock", "--location", park, "--month", "2024-03", "--xlsx", xlsx); err != nil {
		t.Fatalf("stock xlsx: %v", err)
	}
	if body := readFile(t, xlsx); !strings.HasPrefix(body, "PK") {
		t.Error("report is not an xlsx archive")
	}

	out, err = env.run(t, "recalibrate", "--location", park, "--file", writeFile(t, "counts.yaml", countsYAML))
	if err != nil {
		t.Fatalf("recalibrate: %v", err)
	}
	if !strings.Contains(out, "recalibration ") || !strings.Contains(out, "2024-03") {
		t.Errorf("unexpected recalibrate output:\n%s", out)
	}

	recs, err := c.Recalibrations(context.Background(), park, "2024-03")
	if err != nil {
		t.Fatalf("list recalibrations: %v", err)
	}
	if len(recs) != 1 || len(recs[0].Lines) != 2 {
		t.Fatalf("recalibrations = %+v", recs)
	}
}

func TestRecalibrateUnknownSKU(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "login", "--email", "tashi@momo.test", "--password", "tashi-password"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.run(t, "seed", writeFile(t, "fixtures.yaml", fixtureYAML)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c := client.New(env.server.URL, client.WithToken(strings.TrimSpace(readFile(t, env.tokenFile))))
	stores, err := c.Stores(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	_, err = recalibrate(context.Background(), c, stores[0].ID, "", []skuCount{{SKU: "FLOUR", Counted: decimal.NewFromInt(1)}})
	if err == nil || !strings.Contains(err.Error(), `sku "FLOUR"`) {
		t.Fatalf("err = %v, want unknown sku", err)
	}
}

func TestSeedRejectsUnknownManager(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "login", "--email", "tashi@momo.test", "--password", "tashi-password"); err != nil {
		t.Fatalf("login: %v", err)
	}
	bad := `
employees:
  - name: Nobody
    email: nobody@momo.test
    role: employee
    manager_email: ghost@momo.test
`
	_, err := env.run(t, "seed", writeFile(t, "bad.yaml", bad))
	if err == nil || !strings.Contains(err.Error(), "ghost@momo.test") {
		t.Fatalf("err = %v, want unknown manager", err)
	}
}

func TestCommandsNeedToken(t *testing.T) {
	t.Setenv("MOMO_TOKEN", "")
	env := newCLIEnv(t)
	_, err := env.run(t, "seed", writeFile(t, "fixtures.yaml", fixtureYAML))
	if err != errNoToken {
		t.Fatalf("err = %v, want %v", err, errNoToken)
	}
}

func TestParseDispatchLines(t *testing.T) {
	lines, err := parseDispatchLines([]string{"MOMO-VEG=35", "CHUTNEY=2.5"})
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0].SKU != "MOMO-VEG" || lines[1].Quantity != "2.5" {
		t.Errorf("lines = %+v", lines)
	}
	for _, bad := range []string{"MOMO-VEG", "=3", "MOMO-VEG=lots"} {
		if _, err := parseDispatchLines([]string{bad}); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}
