// Package moderator hosts the per-room conversation state machine behind the
// synthetic moderator participant. Every room gets its own sequential worker
// goroutine fed by an event channel, which gives a total order of event
// processing per room without shared callbacks or per-turn locking. External
// capability calls run with bounded timeouts inside the worker; a result
// that lands after the room closed is dropped.
package moderator

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"voicematch/backend/internal/capability"
	"voicematch/backend/internal/config"
	"voicematch/backend/internal/models"

	log "github.com/sirupsen/logrus"
)

// state machine per room: uninitialized -> greeting -> listening <->
// responding, and closed once the room goes away.
type state string

const (
	stateUninitialized state = "uninitialized"
	stateGreeting      state = "greeting"
	stateListening     state = "listening"
	stateResponding    state = "responding"
	stateClosed        state = "closed"
)

// Publisher is the slice of the relay the orchestrator publishes through.
type Publisher interface {
	PublishModerator(roomID string, msg models.SignalMessage)
}

// Options are the tuning knobs of the respond-decision policy. The zero
// value is replaced by the defaults from config.
type Options struct {
	RespondTurnThreshold   int
	SilenceThreshold       time.Duration
	SilencePromptThreshold int
	CapabilityTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.RespondTurnThreshold == 0 {
		o.RespondTurnThreshold = config.RespondTurnThreshold
	}
	if o.SilenceThreshold == 0 {
		o.SilenceThreshold = config.SilenceThreshold
	}
	if o.SilencePromptThreshold == 0 {
		o.SilencePromptThreshold = config.SilencePromptThreshold
	}
	if o.CapabilityTimeout == 0 {
		o.CapabilityTimeout = config.CapabilityTimeout
	}
	return o
}

// Orchestrator owns one worker per active room, keyed by room ID.
type Orchestrator struct {
	relay       Publisher
	profiles    capability.Profiles
	transcriber capability.Transcriber
	generator   capability.Generator
	synthesizer capability.Synthesizer
	opts        Options

	mu      sync.RWMutex
	workers map[string]*roomWorker
}

// NewOrchestrator wires the orchestrator onto the relay and the external
// capabilities.
func NewOrchestrator(relay Publisher, profiles capability.Profiles, transcriber capability.Transcriber,
	generator capability.Generator, synthesizer capability.Synthesizer, opts Options) *Orchestrator {
	return &Orchestrator{
		relay:       relay,
		profiles:    profiles,
		transcriber: transcriber,
		generator:   generator,
		synthesizer: synthesizer,
		opts:        opts.withDefaults(),
		workers:     make(map[string]*roomWorker),
	}
}

type eventKind int

const (
	evActivate eventKind = iota
	evUtterance
	evTick
)

type event struct {
	kind       eventKind
	userID     string
	transcript string
	audio      []byte
}

type roomWorker struct {
	orch   *Orchestrator
	room   models.Room
	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	state  state
	conv   conversation
}

// StartRoom spins up conversation state for a room that just became active
// and kicks off the greeting. Starting the same room twice is a no-op.
func (o *Orchestrator) StartRoom(room *models.Room) {
	o.mu.Lock()
	if _, ok := o.workers[room.RoomID]; ok {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &roomWorker{
		orch:   o,
		room:   *room,
		events: make(chan event, 64),
		ctx:    ctx,
		cancel: cancel,
		state:  stateUninitialized,
	}
	o.workers[room.RoomID] = w
	o.mu.Unlock()

	go w.run()
	w.enqueue(event{kind: evActivate})
}

// SubmitUtterance appends a transcribed participant utterance to the room's
// conversation. Unknown and closed rooms are benign no-ops, never errors.
func (o *Orchestrator) SubmitUtterance(roomID, userID, transcript string) {
	if w := o.worker(roomID); w != nil {
		w.enqueue(event{kind: evUtterance, userID: userID, transcript: transcript})
	}
}

// SubmitAudio feeds raw captured audio through the transcription capability
// before it enters the conversation.
func (o *Orchestrator) SubmitAudio(roomID, userID string, audio []byte) {
	if w := o.worker(roomID); w != nil {
		w.enqueue(event{kind: evUtterance, userID: userID, audio: audio})
	}
}

// Tick is invoked periodically by the scheduler to detect stalled
// conversations.
func (o *Orchestrator) Tick(roomID string) {
	if w := o.worker(roomID); w != nil {
		w.enqueue(event{kind: evTick})
	}
}

// TickAll ticks every live room.
func (o *Orchestrator) TickAll() {
	o.mu.RLock()
	workers := make([]*roomWorker, 0, len(o.workers))
	for _, w := range o.workers {
		workers = append(workers, w)
	}
	o.mu.RUnlock()

	for _, w := range workers {
		w.enqueue(event{kind: evTick})
	}
}

// Evict discards all conversation state for a room. Effective immediately:
// subsequent submissions are ignored and any in-flight generation result is
// dropped when it returns.
func (o *Orchestrator) Evict(roomID string) {
	o.mu.Lock()
	w := o.workers[roomID]
	delete(o.workers, roomID)
	o.mu.Unlock()

	if w != nil {
		w.cancel()
		log.WithField("room_id", roomID).Info("conversation state evicted")
	}
}

// RoomCount returns the number of rooms with live conversation state.
func (o *Orchestrator) RoomCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.workers)
}

func (o *Orchestrator) worker(roomID string) *roomWorker {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.workers[roomID]
}

// enqueue never blocks the caller: a worker drowning in events loses some
// rather than wedging a client pump.
func (w *roomWorker) enqueue(ev event) {
	select {
	case <-w.ctx.Done():
	case w.events <- ev:
	default:
		log.WithField("room_id", w.room.RoomID).Warn("moderator event buffer full, dropping event")
	}
}

func (w *roomWorker) run() {
	for {
		select {
		case <-w.ctx.Done():
			w.state = stateClosed
			return
		case ev := <-w.events:
			switch ev.kind {
			case evActivate:
				w.greet()
			case evUtterance:
				w.handleUtterance(ev)
			case evTick:
				w.handleTick()
			}
		}
	}
}

// greet builds the initial context from both participants' profiles, asks
// the generator for an opening line and speaks it. With the generator down
// the opening line is composed from the display names instead.
func (w *roomWorker) greet() {
	w.state = stateGreeting

	a := w.lookupProfile(w.room.User1ID)
	b := w.lookupProfile(w.room.User2ID)

	seed := models.Turn{
		Speaker:   models.SpeakerModerator,
		SpeakerID: w.room.ModeratorID,
		Text:      seedPrompt(a, b),
		Timestamp: time.Now(),
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.orch.opts.CapabilityTimeout)
	text, err := w.orch.generator.Generate(ctx, []models.Turn{seed})
	cancel()
	if err != nil || text == "" {
		log.WithField("room_id", w.room.RoomID).WithError(err).
			Warn("greeting generation unavailable, using static greeting")
		text = staticGreeting(a, b)
	}

	w.say(text)
	w.state = stateListening
}

func (w *roomWorker) lookupProfile(userID string) *capability.Profile {
	ctx, cancel := context.WithTimeout(w.ctx, w.orch.opts.CapabilityTimeout)
	defer cancel()
	p, err := w.orch.profiles.GetProfile(ctx, userID)
	if err != nil || p == nil {
		log.WithField("user_id", userID).WithError(err).Warn("profile lookup failed")
		return &capability.Profile{DisplayName: "Anonymous"}
	}
	return p
}

func (w *roomWorker) handleUtterance(ev event) {
	if w.state == stateClosed {
		return
	}

	transcript := ev.transcript
	if transcript == "" && len(ev.audio) > 0 {
		ctx, cancel := context.WithTimeout(w.ctx, w.orch.opts.CapabilityTimeout)
		text, err := w.orch.transcriber.Transcribe(ctx, ev.audio)
		cancel()
		if err != nil {
			log.WithField("room_id", w.room.RoomID).WithError(err).
				Warn("transcription unavailable, falling back")
			w.state = stateResponding
			w.say(FallbackUtterance)
			w.state = stateListening
			return
		}
		transcript = text
	}
	if strings.TrimSpace(transcript) == "" {
		return
	}

	var speaker models.Speaker
	switch ev.userID {
	case w.room.User1ID:
		speaker = models.SpeakerHumanA
	case w.room.User2ID:
		speaker = models.SpeakerHumanB
	default:
		return // not a participant of this room
	}

	w.conv.append(speaker, ev.userID, transcript)
	w.conv.silenceCount = 0
	w.conv.humanTurnsSinceModerator++

	if w.shouldRespond(transcript) {
		w.respond(false)
	}
}

// shouldRespond is the respond-decision policy for a fresh human turn:
// answer direct questions, and chime in every Nth human turn so the
// moderator stays engaged without dominating.
func (w *roomWorker) shouldRespond(transcript string) bool {
	if strings.Contains(transcript, "?") {
		return true
	}
	return w.conv.humanTurnsSinceModerator >= w.orch.opts.RespondTurnThreshold
}

// handleTick checks for a stalled conversation. Every full silence interval
// forces a response; once the counter crosses the secondary threshold the
// response is drawn from the fixed prompt bank instead of the generator.
func (w *roomWorker) handleTick() {
	if w.state != stateListening || w.conv.lastTurnAt.IsZero() {
		return
	}
	if time.Since(w.conv.lastTurnAt) < w.orch.opts.SilenceThreshold {
		return
	}

	w.conv.silenceCount++
	w.respond(w.conv.silenceCount >= w.orch.opts.SilencePromptThreshold)
}

// respond produces a moderator turn, either freeform through the generator
// or from the prompt bank, and speaks it. Generator failure degrades to the
// fixed fallback utterance; it never surfaces as an error.
func (w *roomWorker) respond(fromBank bool) {
	w.state = stateResponding
	defer func() {
		if w.state == stateResponding {
			w.state = stateListening
		}
	}()

	var text string
	if fromBank {
		text = pickStarter()
	} else {
		ctx, cancel := context.WithTimeout(w.ctx, w.orch.opts.CapabilityTimeout)
		reply, err := w.orch.generator.Generate(ctx, w.conv.snapshot())
		cancel()
		if err != nil || reply == "" {
			log.WithField("room_id", w.room.RoomID).WithError(err).
				Warn("generation unavailable, using fallback utterance")
			reply = FallbackUtterance
		}
		text = reply
	}

	w.say(text)
}

// say synthesizes audio for the text best-effort, appends the moderator
// turn and publishes it to everyone in the room. A room that closed while a
// capability call was in flight silently drops the result.
func (w *roomWorker) say(text string) {
	var audio string
	ctx, cancel := context.WithTimeout(w.ctx, w.orch.opts.CapabilityTimeout)
	if b, err := w.orch.synthesizer.Synthesize(ctx, text); err == nil && len(b) > 0 {
		audio = base64.StdEncoding.EncodeToString(b)
	} else if err != nil {
		log.WithField("room_id", w.room.RoomID).WithError(err).
			Warn("speech synthesis unavailable, sending text only")
	}
	cancel()

	if w.ctx.Err() != nil {
		return // room closed mid-flight, drop the result
	}

	w.conv.append(models.SpeakerModerator, w.room.ModeratorID, text)
	w.conv.humanTurnsSinceModerator = 0

	w.orch.relay.PublishModerator(w.room.RoomID, models.SignalMessage{
		Type:     models.SignalModeratorMessage,
		RoomID:   w.room.RoomID,
		SenderID: w.room.ModeratorID,
		Text:     text,
		Audio:    audio,
	})
}

// Turns returns a copy of the room's turn sequence, or nil for unknown
// rooms. Used by tests and introspection.
func (o *Orchestrator) Turns(roomID string) []models.Turn {
	w := o.worker(roomID)
	if w == nil {
		return nil
	}
	return w.conv.snapshot()
}
