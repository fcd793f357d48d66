package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/juju/clock/testclock"

	"github.com/imrishuroy/bakery-orderflow/internal/aws/awstest"
)

var epoch = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func TestCreateIfNotExists_Get_MarkDone_MarkFailed(t *testing.T) {
	mock := awstest.NewDynamoDB()
	s := NewStore(mock, "idempotency-table", 48*time.Hour, testclock.NewClock(epoch))

	ctx := context.Background()
	key := "test-key-1"
	orderID := "1024"

	created, err := s.CreateIfNotExists(ctx, key, orderID, "")
	if err != nil {
		t.Fatalf("CreateIfNotExists error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}

	// second create should return created=false (exists)
	created2, err := s.CreateIfNotExists(ctx, key, orderID, "")
	if err != nil {
		t.Fatalf("second CreateIfNotExists error: %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on duplicate create")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}
	if rec.OrderID != orderID {
		t.Fatalf("order id mismatch")
	}
	if rec.ExpiresAt != epoch.Add(48*time.Hour).Unix() {
		t.Fatalf("unexpected expiry %d", rec.ExpiresAt)
	}

	if err := s.MarkDone(ctx, key, "{\"ok\":true}", 201); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	rec, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec.Status != StatusDone || rec.ResponseBody != "{\"ok\":true}" || rec.ResponseStatus != 201 {
		t.Fatalf("record not marked done: %+v", rec)
	}

	if err := s.MarkFailed(ctx, key, "failed-reason"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	item := mock.Items[key]
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusFailed {
		t.Fatalf("status not updated to FAILED, got %+v", item["status"])
	}
	if n, ok := item["note"].(*types.AttributeValueMemberS); !ok || n.Value != "failed-reason" {
		t.Fatalf("note not set, got %+v", item["note"])
	}
}

func TestGetMissing(t *testing.T) {
	s := NewStore(awstest.NewDynamoDB(), "t", 0, nil)
	rec, err := s.Get(context.Background(), "nope")
	if err != nil || rec != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", rec, err)
	}
}

func TestClaim(t *testing.T) {
	mock := awstest.NewDynamoDB()
	s := NewStore(mock, "t", time.Hour, testclock.NewClock(epoch))
	ctx := context.Background()

	rec, claimed, err := s.Claim(ctx, "dispatch-1", "1024", "")
	if err != nil || !claimed || rec != nil {
		t.Fatalf("first claim: rec=%+v claimed=%v err=%v", rec, claimed, err)
	}

	// A concurrent attempt sees the work in progress.
	rec, claimed, err = s.Claim(ctx, "dispatch-1", "1024", "")
	if err != nil || claimed || rec.Status != StatusInProgress {
		t.Fatalf("second claim: rec=%+v claimed=%v err=%v", rec, claimed, err)
	}

	// A failed attempt may be retried once.
	if err := s.MarkFailed(ctx, "dispatch-1", "provider down"); err != nil {
		t.Fatal(err)
	}
	_, claimed, err = s.Claim(ctx, "dispatch-1", "1024", "")
	if err != nil || !claimed {
		t.Fatalf("reclaim after failure: claimed=%v err=%v", claimed, err)
	}
	if got := mock.Status("dispatch-1"); got != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS after reclaim, got %s", got)
	}
	_, claimed, err = s.Claim(ctx, "dispatch-1", "1024", "")
	if err != nil || claimed {
		t.Fatalf("double reclaim: claimed=%v err=%v", claimed, err)
	}

	// Done work is never repeated.
	if err := s.MarkDone(ctx, "dispatch-1", "", 200); err != nil {
		t.Fatal(err)
	}
	rec, claimed, err = s.Claim(ctx, "dispatch-1", "1024", "")
	if err != nil || claimed || rec.Status != StatusDone {
		t.Fatalf("claim after done: rec=%+v claimed=%v err=%v", rec, claimed, err)
	}
}

func TestClaimAfterExpiry(t *testing.T) {
	mock := awstest.NewDynamoDB()
	clk := testclock.NewClock(epoch)
	s := NewStore(mock, "t", time.Hour, clk)
	ctx := context.Background()

	if _, claimed, err := s.Claim(ctx, "key", "", ""); err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	if err := s.MarkDone(ctx, "key", "{}", 201); err != nil {
		t.Fatal(err)
	}

	// Past the TTL the item may linger in the table but must read as gone.
	clk.Advance(time.Hour)
	rec, err := s.Get(ctx, "key")
	if err != nil || rec != nil {
		t.Fatalf("expected expired record to read as missing, got (%+v, %v)", rec, err)
	}
	if _, claimed, err := s.Claim(ctx, "key", "", ""); err != nil || !claimed {
		t.Fatalf("claim after expiry: claimed=%v err=%v", claimed, err)
	}
	if got := mock.Status("key"); got != StatusInProgress {
		t.Fatalf("expected a fresh IN_PROGRESS record, got %s", got)
	}
}

func TestClaimChecksRequestHash(t *testing.T) {
	mock := awstest.NewDynamoDB()
	s := NewStore(mock, "t", time.Hour, testclock.NewClock(epoch))
	ctx := context.Background()

	if _, claimed, err := s.Claim(ctx, "order:k", "", "hash-a"); err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	rec, claimed, err := s.Claim(ctx, "order:k", "", "hash-b")
	if err != nil || claimed {
		t.Fatalf("claim with another request: claimed=%v err=%v", claimed, err)
	}
	if rec.RequestHash != "hash-a" || rec.Matches("hash-b") || !rec.Matches("hash-a") {
		t.Fatalf("expected the first request's hash, got %+v", rec)
	}

	// A failed attempt is only retried by the same request.
	if err := s.MarkFailed(ctx, "order:k", "cart is empty"); err != nil {
		t.Fatal(err)
	}
	rec, claimed, err = s.Claim(ctx, "order:k", "", "hash-b")
	if err != nil || claimed || rec.Status != StatusFailed {
		t.Fatalf("reclaim by another request: rec=%+v claimed=%v err=%v", rec, claimed, err)
	}
	if _, claimed, err := s.Claim(ctx, "order:k", "", "hash-a"); err != nil || !claimed {
		t.Fatalf("reclaim by the same request: claimed=%v err=%v", claimed, err)
	}
}

func TestReclaimOnlyFromFailed(t *testing.T) {
	s := NewStore(awstest.NewDynamoDB(), "t", 0, nil)
	ctx := context.Background()
	if _, err := s.CreateIfNotExists(ctx, "k", "", ""); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Reclaim(ctx, "k")
	if err != nil || ok {
		t.Fatalf("reclaim of IN_PROGRESS: ok=%v err=%v", ok, err)
	}
	ok, err = s.Reclaim(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("reclaim of missing key: ok=%v err=%v", ok, err)
	}
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	mock := awstest.NewDynamoDB()
	mock.Err = errors.New("network down")
	s := NewStore(mock, "t", 0, nil)

	if _, err := s.CreateIfNotExists(context.Background(), "k", "", ""); err == nil {
		t.Fatal("expected error")
	}
	if _, _, err := s.Claim(context.Background(), "k", "", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestAttributevalueMarshal_Unmarshal(t *testing.T) {
	rec := IdempotencyRecord{
		IdempotencyKey: "k1",
		Status:         StatusInProgress,
		OrderID:        "1024",
		CreatedAt:      epoch,
		UpdatedAt:      epoch,
		ExpiresAt:      epoch.Add(24 * time.Hour).Unix(),
	}
	m, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out IdempotencyRecord
	if err := attributevalue.UnmarshalMap(m, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.IdempotencyKey != rec.IdempotencyKey || out.OrderID != rec.OrderID ||
		!out.CreatedAt.Equal(rec.CreatedAt) || out.ExpiresAt != rec.ExpiresAt {
		t.Fatalf("unmarshal mismatch: %+v", out)
	}
}
