package tool

import (
	"context"
	"strings"
	"testing"
)

const counterVCD = `$date today $end
$timescale 1ns $end
$scope module counter_tb $end
$var wire 1 ! clk $end
$var wire 1 " rst $end
$var wire 4 # out $end
$upscope $end
$enddefinitions $end
#0
0!
1"
b0001 #
#5
1!
#10
0!
0"
b0000 #
#15
1!
b0001 #
#25
1!
b0010 #
`

func newWaveformContext(t *testing.T) *Context {
	t.Helper()
	tc := newFileToolContext(t)
	res := handleWriteFile(context.Background(), tc, map[string]interface{}{
		"path":    "sim/waves.vcd",
		"content": counterVCD,
	})
	if res.IsError {
		t.Fatalf("seed write error: %s", res.Text)
	}
	return tc
}

func TestHandleWaveform_TransitionsInWindow(t *testing.T) {
	tc := newWaveformContext(t)

	// The window around the reset edge at #10 must show out dropping to 0
	// and recovering, with timestamps.
	res := handleWaveform(context.Background(), tc, map[string]interface{}{
		"path":       "sim/waves.vcd",
		"signals":    []interface{}{"out"},
		"time_start": 5,
		"time_end":   15,
	})
	if res.IsError {
		t.Fatalf("waveform_tool error: %s", res.Text)
	}
	if !strings.Contains(res.Text, "out [4]") {
		t.Errorf("missing signal header:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "#10 -> b0000") || !strings.Contains(res.Text, "#15 -> b0001") {
		t.Errorf("missing windowed transitions:\n%s", res.Text)
	}
	if strings.Contains(res.Text, "#0 ") || strings.Contains(res.Text, "#25") {
		t.Errorf("transitions outside the window leaked in:\n%s", res.Text)
	}
	if strings.Contains(res.Text, "clk") {
		t.Errorf("unrequested signal leaked in:\n%s", res.Text)
	}
}

func TestHandleWaveform_MultipleSignals(t *testing.T) {
	tc := newWaveformContext(t)

	res := handleWaveform(context.Background(), tc, map[string]interface{}{
		"path":    "sim/waves.vcd",
		"signals": []interface{}{"rst", "out"},
	})
	if res.IsError {
		t.Fatalf("waveform_tool error: %s", res.Text)
	}
	if !strings.Contains(res.Text, "rst [1]") || !strings.Contains(res.Text, "out [4]") {
		t.Errorf("missing a requested signal:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "#10 -> 0") {
		t.Errorf("missing scalar rst transition at #10:\n%s", res.Text)
	}
}

func TestHandleWaveform_AllSignalsWhenUnfiltered(t *testing.T) {
	tc := newWaveformContext(t)

	res := handleWaveform(context.Background(), tc, map[string]interface{}{"path": "sim/waves.vcd"})
	if res.IsError {
		t.Fatalf("waveform_tool error: %s", res.Text)
	}
	for _, name := range []string{"clk", "rst", "out"} {
		if !strings.Contains(res.Text, name+" [") {
			t.Errorf("signal %q missing from unfiltered report:\n%s", name, res.Text)
		}
	}
}

func TestHandleWaveform_UnknownSignal(t *testing.T) {
	tc := newWaveformContext(t)

	res := handleWaveform(context.Background(), tc, map[string]interface{}{
		"path":    "sim/waves.vcd",
		"signals": []interface{}{"bogus"},
	})
	if !res.IsError || !strings.Contains(res.Text, "bogus") {
		t.Fatalf("result = %+v, want unknown-signal error", res)
	}
}

func TestHandleWaveform_EmptyWindow(t *testing.T) {
	tc := newWaveformContext(t)

	res := handleWaveform(context.Background(), tc, map[string]interface{}{
		"path":       "sim/waves.vcd",
		"signals":    []interface{}{"out"},
		"time_start": 100,
		"time_end":   200,
	})
	if res.IsError {
		t.Fatalf("waveform_tool error: %s", res.Text)
	}
	if !strings.Contains(res.Text, "(no transitions in window)") {
		t.Errorf("result = %q, want empty-window marker", res.Text)
	}
}

func TestHandleWaveform_InvertedWindowRejected(t *testing.T) {
	tc := newWaveformContext(t)

	res := handleWaveform(context.Background(), tc, map[string]interface{}{
		"path":       "sim/waves.vcd",
		"time_start": 20,
		"time_end":   10,
	})
	if !res.IsError {
		t.Fatalf("result = %+v, want inverted-window error", res)
	}
}
