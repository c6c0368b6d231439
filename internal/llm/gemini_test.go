package llm

import (
	"errors"
	"fmt"
	"testing"

	llmclient "miniforge/internal/llmclient"
)

func TestClassifyMapsOverloadMarkers(t *testing.T) {
	for _, msg := range []string{
		"googleapi: Error 429: quota exceeded",
		"rpc error: code = RESOURCE_EXHAUSTED",
		"googleapi: Error 503: service unavailable",
		"code = UNAVAILABLE desc = try later",
		"model overloaded, retry later",
	} {
		err := classify(fmt.Errorf("%s", msg))
		if !errors.Is(err, llmclient.ErrOverloaded) {
			t.Fatalf("classify(%q) = %v, want overload class", msg, err)
		}
	}
}

func TestClassifyLeavesOtherErrorsAlone(t *testing.T) {
	in := errors.New("invalid argument: bad prompt")
	if err := classify(in); err != in {
		t.Fatalf("classify() = %v, want original error", err)
	}
}
