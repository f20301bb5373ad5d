package idgen

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Snowflake-style id generator backing every business number in the system.
// Order references, tracking codes and transaction numbers must be globally
// unique and roughly time-ordered so they index well; the snowflake layout
// (41-bit millisecond timestamp, 10-bit worker id, 12-bit sequence) gives
// both without a database round trip.

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			log.Fatalf("workerID must be within 0-%d", maxWorkerID)
		}
		defaultGenerator = &Snowflake{workerID: workerID}
	})
}

func NextID() int64 {
	if defaultGenerator == nil {
		Init(1)
	}
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted for this millisecond, spin to the next one
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

func numbered(prefix string) string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s%s%08d", prefix, timestamp, id%100000000)
}

// GenerateOrderReference builds a recharge order reference, e.g. RCH2024011514305212345678.
func GenerateOrderReference() string {
	return numbered("RCH")
}

// GenerateTrackingCode builds a shipment tracking code.
func GenerateTrackingCode() string {
	return numbered("SHP")
}

// GenerateTransactionNo builds a ledger transaction number.
func GenerateTransactionNo() string {
	return numbered("TXN")
}
