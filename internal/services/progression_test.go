package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/feedquest-backend/internal/alignment"
	"github.com/yungbote/feedquest-backend/internal/clients/bsky"
	"github.com/yungbote/feedquest-backend/internal/events"
	"github.com/yungbote/feedquest-backend/internal/firehose"
	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/repos"
	"github.com/yungbote/feedquest-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&types.Character{}, &types.CharacterAlignment{}, &types.ExperienceEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

type fakeProfiles struct {
	seed  int
	err   error
	calls atomic.Int32
}

func (f *fakeProfiles) GetProfile(_ context.Context, did string) (bsky.Profile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return bsky.Profile{}, f.err
	}
	return bsky.Profile{DID: did, Handle: "tester.bsky.social", DisplayName: "Tester", SeedExperience: f.seed}, nil
}

type fakeSentiment struct {
	out alignment.Sentiment
	err error
}

func (f *fakeSentiment) Analyze(context.Context, string) (alignment.Sentiment, error) {
	return f.out, f.err
}

type fakeSpellcheck struct {
	mistakes int
	err      error
}

func (f *fakeSpellcheck) Check(context.Context, string) (int, error) {
	return f.mistakes, f.err
}

type fixture struct {
	db          *gorm.DB
	service     ProgressionService
	profiles    *fakeProfiles
	characters  repos.CharacterRepo
	alignments  repos.AlignmentRepo
	ledger      repos.ExperienceEventRepo
	sentimentFn *fakeSentiment
	spellFn     *fakeSpellcheck
}

func newFixture(t *testing.T, seed int) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()

	characters := repos.NewCharacterRepo(db, log)
	alignments := repos.NewAlignmentRepo(db, log)
	ledger := repos.NewExperienceEventRepo(db, log)
	profiles := &fakeProfiles{seed: seed}
	sentiment := &fakeSentiment{out: alignment.Sentiment{Polarity: alignment.Positive, Score: 0.8}}
	spell := &fakeSpellcheck{mistakes: 3}

	svc := NewProgressionService(db, log, characters, alignments, ledger, profiles, sentiment, spell, nil)
	return &fixture{
		db:          db,
		service:     svc,
		profiles:    profiles,
		characters:  characters,
		alignments:  alignments,
		ledger:      ledger,
		sentimentFn: sentiment,
		spellFn:     spell,
	}
}

func createEvent(did, collection, rkey string, record []byte) *firehose.Event {
	return &firehose.Event{
		DID:    did,
		TimeUS: time.Now().UnixMicro(),
		Kind:   firehose.KindCommit,
		Commit: &firehose.Commit{
			Operation:  firehose.OpCreate,
			Collection: collection,
			RKey:       rkey,
			Record:     record,
		},
	}
}

func deleteEvent(did, collection, rkey string) *firehose.Event {
	return &firehose.Event{
		DID:    did,
		TimeUS: time.Now().UnixMicro(),
		Kind:   firehose.KindCommit,
		Commit: &firehose.Commit{
			Operation:  firehose.OpDelete,
			Collection: collection,
			RKey:       rkey,
		},
	}
}

func postRecord(t *testing.T, text string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"text": text})
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return raw
}

func TestResolveOrCreateBootstrapsOnce(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	ch, err := f.service.ResolveOrCreate(ctx, "did:plc:alice")
	if err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}
	if ch.Experience != 100 || ch.Level != 1 {
		t.Fatalf("seeded state = level %d / xp %d, want level 1 / xp 100", ch.Level, ch.Experience)
	}

	if _, err := f.service.ResolveOrCreate(ctx, "did:plc:alice"); err != nil {
		t.Fatalf("second ResolveOrCreate: %v", err)
	}
	if got := f.profiles.calls.Load(); got != 1 {
		t.Fatalf("profile lookups = %d, want 1", got)
	}

	al, err := f.service.GetAlignment(ctx, "did:plc:alice")
	if err != nil {
		t.Fatalf("GetAlignment: %v", err)
	}
	if al == nil || al.Label != "true neutral" {
		t.Fatalf("bootstrap alignment = %+v, want true neutral row", al)
	}
}

func TestResolveOrCreateProfileFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.profiles.err = errors.New("appview unreachable")

	if _, err := f.service.ResolveOrCreate(context.Background(), "did:plc:ghost"); err == nil {
		t.Fatal("expected bootstrap failure when the profile service is down")
	}
}

func TestApplyCreateIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	ev := createEvent("did:plc:alice", events.CollectionPost, "3abc", postRecord(t, "hello world"))
	c := events.Classify(ev.Commit.Collection, ev.Commit.Record)

	first, err := f.service.ApplyCreate(ctx, ev, c)
	if err != nil {
		t.Fatalf("first ApplyCreate: %v", err)
	}
	if first.Duplicate || first.GainedXP != len("hello world") {
		t.Fatalf("first result = %+v, want %d XP", first, len("hello world"))
	}

	second, err := f.service.ApplyCreate(ctx, ev, c)
	if err != nil {
		t.Fatalf("second ApplyCreate: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second delivery not flagged as duplicate")
	}

	ch, err := f.characters.GetByDID(ctx, nil, "did:plc:alice")
	if err != nil {
		t.Fatalf("reload character: %v", err)
	}
	if ch.Experience != len("hello world") {
		t.Fatalf("experience = %d, want single credit of %d", ch.Experience, len("hello world"))
	}

	var count int64
	if err := f.db.Model(&types.ExperienceEvent{}).Where("source_event_id = ?", ev.SourceEventID()).Count(&count).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if count != 1 {
		t.Fatalf("ledger rows = %d, want 1", count)
	}
}

func TestApplyCreateLikeNeverMutatesAlignment(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	ev := createEvent("did:plc:alice", events.CollectionLike, "3like", nil)

	res, err := f.service.ApplyCreate(ctx, ev, events.Classify(ev.Commit.Collection, nil))
	if err != nil {
		t.Fatalf("ApplyCreate: %v", err)
	}
	if res.GainedXP != 10 {
		t.Fatalf("like XP = %d, want 10", res.GainedXP)
	}

	al, err := f.service.GetAlignment(ctx, "did:plc:alice")
	if err != nil {
		t.Fatalf("GetAlignment: %v", err)
	}
	if al.Good != 0 || al.Evil != 0 || al.Lawful != 0 || al.Chaotic != 0 || al.Label != "true neutral" {
		t.Fatalf("like mutated alignment: %+v", al)
	}
}

func TestApplyCreatePostScoresAlignment(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	ev := createEvent("did:plc:alice", events.CollectionPost, "3post", postRecord(t, "what a lovely day"))

	if _, err := f.service.ApplyCreate(ctx, ev, events.Classify(ev.Commit.Collection, ev.Commit.Record)); err != nil {
		t.Fatalf("ApplyCreate: %v", err)
	}

	al, err := f.service.GetAlignment(ctx, "did:plc:alice")
	if err != nil {
		t.Fatalf("GetAlignment: %v", err)
	}
	// Positive 0.8 → good += 80; 3 mistakes → lawful += 15.
	if al.Good != 80 || al.Lawful != 15 {
		t.Fatalf("axes = good %d / lawful %d, want 80 / 15", al.Good, al.Lawful)
	}
	if al.Label != "lawful good" {
		t.Fatalf("label = %q, want lawful good", al.Label)
	}
}

func TestApplyCreateSignalFailureStillAwardsXP(t *testing.T) {
	f := newFixture(t, 0)
	f.sentimentFn.err = errors.New("sentiment down")
	f.spellFn.err = errors.New("spellcheck down")
	ctx := context.Background()
	ev := createEvent("did:plc:alice", events.CollectionPost, "3post", postRecord(t, "hello"))

	res, err := f.service.ApplyCreate(ctx, ev, events.Classify(ev.Commit.Collection, ev.Commit.Record))
	if err != nil {
		t.Fatalf("ApplyCreate: %v", err)
	}
	if res.GainedXP != len("hello") {
		t.Fatalf("XP = %d, want %d despite signal failures", res.GainedXP, len("hello"))
	}

	al, err := f.service.GetAlignment(ctx, "did:plc:alice")
	if err != nil {
		t.Fatalf("GetAlignment: %v", err)
	}
	if al.Good != 0 || al.Lawful != 0 {
		t.Fatalf("alignment moved on failed signals: %+v", al)
	}
}

func TestApplyDeleteFloorsExperienceAtOne(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	if _, err := f.service.ResolveOrCreate(ctx, "did:plc:alice"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	entry := &types.ExperienceEvent{
		DID:           "did:plc:alice",
		EventKind:     string(events.KindPost),
		SourceEventID: "did:plc:alice/" + events.CollectionPost + "/3gone",
		XPAwarded:     50,
		OccurredAt:    time.Now(),
	}
	if _, err := f.ledger.InsertIfAbsent(ctx, nil, entry); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	if err := f.service.ApplyDelete(ctx, deleteEvent("did:plc:alice", events.CollectionPost, "3gone")); err != nil {
		t.Fatalf("ApplyDelete: %v", err)
	}

	ch, err := f.characters.GetByDID(ctx, nil, "did:plc:alice")
	if err != nil {
		t.Fatalf("reload character: %v", err)
	}
	if ch.Experience != 1 {
		t.Fatalf("experience = %d, want floor of 1", ch.Experience)
	}
}

func TestApplyDeleteFallbackForUntrackedAward(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	if _, err := f.service.ResolveOrCreate(ctx, "did:plc:alice"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	entry := &types.ExperienceEvent{
		DID:           "did:plc:alice",
		EventKind:     string(events.KindLike),
		SourceEventID: "did:plc:alice/" + events.CollectionLike + "/3old",
		XPAwarded:     0,
		OccurredAt:    time.Now(),
	}
	if _, err := f.ledger.InsertIfAbsent(ctx, nil, entry); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	if err := f.service.ApplyDelete(ctx, deleteEvent("did:plc:alice", events.CollectionLike, "3old")); err != nil {
		t.Fatalf("ApplyDelete: %v", err)
	}

	ch, err := f.characters.GetByDID(ctx, nil, "did:plc:alice")
	if err != nil {
		t.Fatalf("reload character: %v", err)
	}
	if ch.Experience != 100-events.DeleteFallbackLikeXP {
		t.Fatalf("experience = %d, want %d", ch.Experience, 100-events.DeleteFallbackLikeXP)
	}
}

func TestApplyDeleteUnseenIDConsumesIt(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	rkey := "3late"

	if err := f.service.ApplyDelete(ctx, deleteEvent("did:plc:alice", events.CollectionLike, rkey)); err != nil {
		t.Fatalf("ApplyDelete: %v", err)
	}

	entry, err := f.ledger.GetBySourceEventID(ctx, nil, "did:plc:alice/"+events.CollectionLike+"/"+rkey)
	if err != nil {
		t.Fatalf("lookup placeholder: %v", err)
	}
	if entry == nil || entry.XPAwarded != 0 {
		t.Fatalf("placeholder = %+v, want zero-XP row", entry)
	}

	// A late-arriving create for the same id must not credit.
	ev := createEvent("did:plc:alice", events.CollectionLike, rkey, nil)
	res, err := f.service.ApplyCreate(ctx, ev, events.Classify(ev.Commit.Collection, nil))
	if err != nil {
		t.Fatalf("late ApplyCreate: %v", err)
	}
	if !res.Duplicate {
		t.Fatal("late create for consumed id was credited")
	}
}

func TestDispatcherNoLostUpdates(t *testing.T) {
	f := newFixture(t, 0)
	d := NewDispatcher(logger.NewNop(), DispatcherConfig{
		MaxInFlight:  8,
		QueueDepth:   4,
		EventTimeout: 10 * time.Second,
	}, f.service)

	const n = 25
	ctx := context.Background()
	for i := 0; i < n; i++ {
		ev := createEvent("did:plc:alice", events.CollectionLike, fmt.Sprintf("3like%d", i), nil)
		if err := d.Submit(ctx, ev); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	d.Shutdown()

	processed, dropped, failed := d.Stats()
	if processed != n || dropped != 0 || failed != 0 {
		t.Fatalf("stats = %d/%d/%d, want %d processed", processed, dropped, failed, n)
	}

	ch, err := f.characters.GetByDID(ctx, nil, "did:plc:alice")
	if err != nil {
		t.Fatalf("reload character: %v", err)
	}
	if ch.Experience != n*10 {
		t.Fatalf("experience = %d, want %d", ch.Experience, n*10)
	}
}

func TestDispatcherDropsUnknownAndUpdates(t *testing.T) {
	f := newFixture(t, 0)
	d := NewDispatcher(logger.NewNop(), DispatcherConfig{}, f.service)
	ctx := context.Background()

	unknown := createEvent("did:plc:alice", "app.bsky.graph.follow", "3f", nil)
	update := createEvent("did:plc:alice", events.CollectionPost, "3u", postRecord(t, "edited"))
	update.Commit.Operation = firehose.OpUpdate

	if err := d.Submit(ctx, unknown); err != nil {
		t.Fatalf("Submit unknown: %v", err)
	}
	if err := d.Submit(ctx, update); err != nil {
		t.Fatalf("Submit update: %v", err)
	}
	d.Shutdown()

	processed, dropped, _ := d.Stats()
	if processed != 0 || dropped != 2 {
		t.Fatalf("stats = %d processed / %d dropped, want 0 / 2", processed, dropped)
	}
	if got := f.profiles.calls.Load(); got != 0 {
		t.Fatalf("dropped events triggered %d profile lookups", got)
	}
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	f := newFixture(t, 0)
	d := NewDispatcher(logger.NewNop(), DispatcherConfig{}, f.service)
	d.Shutdown()

	ev := createEvent("did:plc:alice", events.CollectionLike, "3x", nil)
	if err := d.Submit(context.Background(), ev); err == nil {
		t.Fatal("Submit after Shutdown did not fail")
	}
}
