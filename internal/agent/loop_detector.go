package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

// warningThreshold is the number of consecutive identical (name, args) tool
// calls producing an identical result before the model is warned to change
// strategy. criticalThreshold is the point at which the loop is cut rather
// than warned again.
const (
	warningThreshold  = 3
	criticalThreshold = 5
)

// toolLoopState detects a model stuck repeatedly calling the same tool with
// the same arguments and getting the same result back. It is keyed on a
// hash of (tool name, arguments) rather than a raw string to keep the state
// map bounded regardless of argument size.
type toolLoopState struct {
	mu      sync.Mutex
	counts  map[string]int    // argsHash -> consecutive repeat count
	lastKey string            // most recently recorded hash, to detect "consecutive"
	results map[string]string // argsHash -> last observed result, to detect no-progress
}

// record computes a stable hash for (name, args) and bumps its consecutive
// repeat counter, resetting every other counter since only back-to-back
// repeats count as a loop.
func (s *toolLoopState) record(name string, args map[string]interface{}) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[string]int)
		s.results = make(map[string]string)
	}

	hash := hashCall(name, args)
	if hash == s.lastKey {
		s.counts[hash]++
	} else {
		s.counts[hash] = 1
		s.lastKey = hash
	}
	return hash
}

// recordResult stores the result observed for a given call hash. A result
// that differs from the previous one for the same hash resets that hash's
// repeat counter, since the call made progress.
func (s *toolLoopState) recordResult(hash, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		s.results = make(map[string]string)
	}
	if prev, ok := s.results[hash]; ok && prev != result && s.counts != nil {
		s.counts[hash] = 1
	}
	s.results[hash] = result
}

// detect reports whether hash's consecutive-repeat count has crossed the
// warning or critical threshold. Only a repeat that keeps producing the
// same result counts as "no progress" — a tool called repeatedly with
// changing output (e.g. polling a synthesis job) is not a loop.
func (s *toolLoopState) detect(name, hash string) (level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := s.counts[hash]
	switch {
	case count >= criticalThreshold:
		return "critical", fmt.Sprintf("tool %q called %d times in a row with no new result", name, count)
	case count >= warningThreshold:
		return "warning", fmt.Sprintf("You have called %q %d times in a row with the same arguments and gotten the same result. Try a different approach.", name, count)
	default:
		return "", ""
	}
}

func hashCall(name string, args map[string]interface{}) string {
	raw, _ := json.Marshal(args)
	sum := sha256.Sum256(append([]byte(name+":"), raw...))
	return hex.EncodeToString(sum[:])
}

func toolLoopStuckMessage(name string) string {
	return "I was unable to complete this task — I got stuck repeatedly calling " + name + " without making progress. Please try rephrasing your request."
}
