package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/numislab/coincataloger/internal/cataloging"
	"github.com/numislab/coincataloger/internal/models"
)

func TestReporterOutput(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, 0.015)

	units := []models.CoinUnit{
		{ID: 0, Face: "IMG_1.jpg", Reverse: "IMG_2.jpg"},
		{ID: 1, Face: "IMG_3.jpg", Reverse: "IMG_4.jpg"},
	}
	recognized := models.NewRecognizedRecord(units[0], models.Fields{
		Country: models.NewText("Italie"),
		Value:   models.NewText("200 Lire"),
		Year:    models.NewText("1980"),
	})
	failed := models.NewFailedRecord(units[1], errors.New("recognition failed"))

	r.Start(2)
	r.UnitDone(units[0], recognized, 2)
	r.UnitDone(units[1], failed, 2)
	r.Finish(cataloging.Summary{Total: 2, Succeeded: 1, Failed: 1})

	expected := []string{
		"Found 2 coins to analyze",
		"Estimated cost: ~$0.03",
		"[1/2] Coin #0 (IMG_1.jpg, IMG_2.jpg)... ✓ Italie - 200 Lire (1980)",
		"[2/2] Coin #1 (IMG_3.jpg, IMG_4.jpg)... ✗ Error: recognition failed",
		"1/2 coins analyzed successfully",
		"1 coins failed",
	}
	out := buf.String()
	for _, line := range expected {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("output missing line %q:\n%s", line, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("non-terminal output must not contain escape codes:\n%q", out)
	}
}

func TestReporterColor(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, 0)
	r.SetColor(true)

	unit := models.CoinUnit{ID: 0, Face: "a.jpg", Reverse: "b.jpg"}
	r.UnitDone(unit, models.NewRecognizedRecord(unit, models.Fields{}), 1)

	if !strings.Contains(buf.String(), "\x1b[32m") {
		t.Errorf("expected green marker, got %q", buf.String())
	}
}

func TestReporterWithoutCost(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(&buf, 0).Start(3)

	if strings.Contains(buf.String(), "Estimated cost") {
		t.Errorf("cost line printed with zero cost: %q", buf.String())
	}
}

func TestEstimateCost(t *testing.T) {
	if got := EstimateCost(100, 0.015); got < 1.499 || got > 1.501 {
		t.Errorf("Expected 1.50, got %f", got)
	}
}
