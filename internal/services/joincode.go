package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/tyler-smith/go-bip39/wordlists"

	"github.com/queueit/backend/internal/queue"
)

// wordlist is the BIP39 English wordlist (2048 words, at most 8 letters each).
// Two words plus a number give 2048 × 2048 × 100 = 419 million codes, and
// the longest possible code still fits the 20 character limit.
var wordlist = wordlists.English

var ErrInvalidJoinCode = errors.New("join code must be 4 to 20 letters, digits or dashes")

var joinCodePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{2,18}[a-z0-9]$`)

// NormalizeJoinCode canonicalizes a host-chosen code and validates it.
func NormalizeJoinCode(code string) (string, error) {
	c := queue.CanonicalID(code)
	if !joinCodePattern.MatchString(c) {
		return "", ErrInvalidJoinCode
	}
	return c, nil
}

// JoinCodeChecker reports whether a code is already taken.
type JoinCodeChecker interface {
	JoinCodeExists(ctx context.Context, code string) (bool, error)
}

// JoinCodeService generates unique, human-readable join codes.
// Codes follow the pattern "word-word-number" (e.g., "apple-river-42").
type JoinCodeService struct {
	checker JoinCodeChecker
	mu      sync.Mutex
	rng     *rand.Rand
}

// NewJoinCodeService creates a JoinCodeService with its own random source.
func NewJoinCodeService(checker JoinCodeChecker) *JoinCodeService {
	return &JoinCodeService{
		checker: checker,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate creates an unused join code, retrying if collisions occur.
// Returns an error if no unique code can be found after 100 attempts.
func (s *JoinCodeService) Generate(ctx context.Context) (string, error) {
	maxAttempts := 100
	for i := 0; i < maxAttempts; i++ {
		word1, word2, num := s.pick()
		code := fmt.Sprintf("%s-%s-%d", word1, word2, num)

		exists, err := s.checker.JoinCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check join code: %w", err)
		}

		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique join code after %d attempts", maxAttempts)
}

// GenerateName creates a random display name for members who did not pick one.
// Returns a PascalCase name like "HappyTiger42".
func (s *JoinCodeService) GenerateName() string {
	word1, word2, num := s.pick()
	return fmt.Sprintf("%s%s%d", capitalize(word1), capitalize(word2), num)
}

// rand.Rand is not safe for concurrent use.
func (s *JoinCodeService) pick() (string, string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wordlist[s.rng.Intn(len(wordlist))], wordlist[s.rng.Intn(len(wordlist))], s.rng.Intn(100)
}

// capitalize returns the string with its first letter uppercased.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
