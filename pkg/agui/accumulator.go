// Package agui folds a stream of A2A events into chat items and reports
// every change as a delta a renderer can apply in place.
package agui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/classifier"
	"github.com/kadirpekel/a2achat/pkg/translator"
)

// toolKeyPrefix marks keys synthesized for tool steps without a group or
// call id.
const toolKeyPrefix = "tool:"

type itemClass int

const (
	classAtomic itemClass = iota
	classStep
	classText
	classNotice
)

type entry struct {
	msg   chat.Message
	class itemClass
	open  bool
}

// scope is the container an item was found in. Text items accumulate per
// scope; any other item in the same scope closes the current text segment.
type scope struct {
	base   string
	append bool
}

// Accumulator merges streamed chunks into chat items. It is owned by a
// single stream and is not safe for concurrent use.
type Accumulator struct {
	tr *translator.Translator

	entries map[string]entry
	order   []string

	// current maps a base correlation key to its live generation.
	current     map[string]string
	generations map[string]int

	toolOrdinals map[string]int
	openTools    map[string][]string

	segments     map[string]string
	segmentCount map[string]int

	synth int
	seq   int

	taskID    string
	contextID string
	state     a2a.TaskState

	sawArtifacts bool
	discarded    bool
}

// NewAccumulator creates an accumulator that translates chunks with tr.
func NewAccumulator(tr *translator.Translator) *Accumulator {
	a := &Accumulator{tr: tr}
	a.reset()
	return a
}

func (a *Accumulator) reset() {
	a.entries = map[string]entry{}
	a.order = nil
	a.current = map[string]string{}
	a.generations = map[string]int{}
	a.toolOrdinals = map[string]int{}
	a.openTools = map[string][]string{}
	a.segments = map[string]string{}
	a.segmentCount = map[string]int{}
}

// TaskID returns the task id seen on the stream, if any.
func (a *Accumulator) TaskID() string { return a.taskID }

// ContextID returns the context id seen on the stream, if any.
func (a *Accumulator) ContextID() string { return a.contextID }

// State returns the last task state seen on the stream.
func (a *Accumulator) State() a2a.TaskState { return a.state }

// Apply consumes one stream event and returns the resulting deltas in the
// order the event's content was read.
func (a *Accumulator) Apply(event a2a.Event) []Delta {
	if a.discarded || event == nil {
		return nil
	}

	var deltas []Delta
	switch ev := event.(type) {
	case *a2a.Task:
		a.track(string(ev.ID), ev.ContextID, ev.Status.State)
		// A snapshot after content has streamed repeats that content.
		if a.seq == 0 {
			for _, art := range ev.Artifacts {
				if art == nil {
					continue
				}
				a.sawArtifacts = true
				sc := scope{base: "artifact:" + string(art.ID)}
				deltas = append(deltas, a.applyItems(sc, a.tr.ArtifactItems(art, translator.ModeStreaming))...)
				deltas = append(deltas, a.closeSegment(sc.base)...)
			}
		}
		deltas = append(deltas, a.applyStatus(ev.Status)...)
		if ev.Status.State.Terminal() {
			deltas = append(deltas, a.Finish(ev.Status.State)...)
		}

	case *a2a.Message:
		a.track(string(ev.TaskID), ev.ContextID, "")
		sc := scope{base: "message:" + ev.ID}
		deltas = append(deltas, a.applyItems(sc, a.tr.MessageItems(ev, translator.ModeFinal))...)
		deltas = append(deltas, a.Finish(a2a.TaskStateCompleted)...)

	case *a2a.TaskArtifactUpdateEvent:
		a.track(string(ev.TaskID), ev.ContextID, "")
		deltas = append(deltas, a.applyMetadata(ev.Metadata)...)
		if ev.Artifact != nil {
			a.sawArtifacts = true
			sc := scope{base: "artifact:" + string(ev.Artifact.ID), append: ev.Append}
			deltas = append(deltas, a.applyItems(sc, a.tr.ArtifactItems(ev.Artifact, translator.ModeStreaming))...)
			if ev.LastChunk {
				deltas = append(deltas, a.closeSegment(sc.base)...)
			}
		}

	case *a2a.TaskStatusUpdateEvent:
		a.track(string(ev.TaskID), ev.ContextID, ev.Status.State)
		deltas = append(deltas, a.applyMetadata(ev.Metadata)...)
		deltas = append(deltas, a.applyStatus(ev.Status)...)
		if ev.Final {
			deltas = append(deltas, a.Finish(ev.Status.State)...)
		}

	default:
		a.tr.Logger().Debug("Ignored stream event", "type", fmt.Sprintf("%T", event))
	}
	return deltas
}

func (a *Accumulator) track(taskID, contextID string, state a2a.TaskState) {
	if taskID != "" {
		a.taskID = taskID
	}
	if contextID != "" {
		a.contextID = contextID
	}
	if state != "" {
		a.state = state
	}
}

func (a *Accumulator) applyStatus(status a2a.TaskStatus) []Delta {
	var items []translator.Item
	switch status.State {
	case a2a.TaskStateSubmitted, a2a.TaskStateWorking, "":
		items = a.tr.MessageItems(status.Message, translator.ModeStreaming)
	default:
		items = a.tr.StatusItems(status, a.sawArtifacts, translator.ModeStreaming)
	}
	if len(items) == 0 {
		return nil
	}
	base := "status"
	if status.Message != nil && status.Message.ID != "" {
		base = "message:" + status.Message.ID
	}
	deltas := a.applyItems(scope{base: base}, items)
	return append(deltas, a.closeSegment(base)...)
}

// applyMetadata applies event-level metadata. Each event is its own scope.
func (a *Accumulator) applyMetadata(meta map[string]any) []Delta {
	items := a.tr.MetadataItems(meta, translator.ModeStreaming)
	if len(items) == 0 {
		return nil
	}
	base := a.nextSynthetic()
	deltas := a.applyItems(scope{base: base}, items)
	return append(deltas, a.closeSegment(base)...)
}

// Finish finalizes items still open when the stream ends. Completed runs
// close open steps as successful, failed, canceled and rejected runs close
// them as errors, and runs waiting for input leave them open.
func (a *Accumulator) Finish(state a2a.TaskState) []Delta {
	if a.discarded {
		return nil
	}
	if state != "" {
		a.state = state
	}

	var closing chat.StepStatus
	switch state {
	case a2a.TaskStateInputRequired, a2a.TaskStateAuthRequired:
		return nil
	case a2a.TaskStateFailed, a2a.TaskStateCanceled, a2a.TaskStateRejected:
		closing = chat.StepError
	default:
		closing = chat.StepSuccess
	}

	var deltas []Delta
	for _, key := range a.order {
		e := a.entries[key]
		if !e.open {
			continue
		}
		if e.class == classStep {
			e.msg = withStepStatus(e.msg, closing)
		}
		deltas = append(deltas, a.finalize(key, e))
	}
	clear(a.segments)
	clear(a.openTools)
	return deltas
}

// Discard drops all state without emitting anything. Later events are
// ignored.
func (a *Accumulator) Discard() {
	a.reset()
	a.discarded = true
}

// Messages returns a snapshot of every item in first-seen order.
func (a *Accumulator) Messages() []chat.Message {
	if len(a.order) == 0 {
		return nil
	}
	out := make([]chat.Message, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.entries[key].msg)
	}
	return out
}

func (a *Accumulator) applyItems(sc scope, items []translator.Item) []Delta {
	var deltas []Delta
	for _, item := range items {
		deltas = append(deltas, a.applyItem(sc, item)...)
	}
	return deltas
}

func (a *Accumulator) applyItem(sc scope, item translator.Item) []Delta {
	class := classify(item)

	if class == classText && item.GroupID == "" {
		return []Delta{a.applyText(sc, item.Message)}
	}

	deltas := a.closeSegment(sc.base)
	switch class {
	case classStep:
		deltas = append(deltas, a.applyStep(item))
	case classNotice, classText:
		key := a.live(a.baseKey(item))
		deltas = append(deltas, a.upsert(key, item.Message, class, false))
	default:
		key := a.nextSynthetic()
		deltas = append(deltas, a.upsert(key, item.Message, class, true))
	}
	return deltas
}

func classify(item translator.Item) itemClass {
	switch item.Message.Kind {
	case chat.KindChainOfThought, chat.KindReasoningSteps:
		return classStep
	case chat.KindText:
		return classText
	case chat.KindUserDefined:
		if item.Message.UserDefined != nil && item.Message.UserDefined.Type == chat.UserDefinedStatus {
			return classNotice
		}
	}
	return classAtomic
}

func (a *Accumulator) baseKey(item translator.Item) string {
	switch {
	case item.GroupID != "":
		return "group:" + item.GroupID
	case item.ToolCallID != "":
		return "call:" + item.ToolCallID
	}
	return a.nextSynthetic()
}

func (a *Accumulator) nextSynthetic() string {
	a.synth++
	return fmt.Sprintf("item:%d", a.synth)
}

// live resolves a base key to its open generation, starting a new
// generation when the current one is already finalized.
func (a *Accumulator) live(base string) string {
	key, ok := a.current[base]
	if !ok {
		a.current[base] = base
		return base
	}
	if e, exists := a.entries[key]; exists && !e.open {
		a.generations[base]++
		key = fmt.Sprintf("%s~%d", base, a.generations[base])
		a.current[base] = key
	}
	return key
}

func (a *Accumulator) applyStep(item translator.Item) Delta {
	var key string
	switch {
	case item.GroupID != "" || item.ToolCallID != "":
		key = a.live(a.baseKey(item))
	case item.Kind == classifier.KindToolResult && len(a.openTools[item.ToolName]) > 0:
		key = a.openTools[item.ToolName][0]
	case item.Kind == classifier.KindToolCall && a.openCall(item.ToolName) != "":
		key = a.openCall(item.ToolName)
	case item.Kind == classifier.KindToolCall || item.Kind == classifier.KindToolResult:
		a.toolOrdinals[item.ToolName]++
		key = a.live(fmt.Sprintf("%s%s#%d", toolKeyPrefix, item.ToolName, a.toolOrdinals[item.ToolName]))
	default:
		key = a.nextSynthetic()
	}

	terminal := stepsTerminal(item.Message)
	delta := a.upsert(key, item.Message, classStep, terminal)

	if item.ToolName != "" {
		if terminal {
			a.openTools[item.ToolName] = slices.DeleteFunc(a.openTools[item.ToolName], func(k string) bool { return k == key })
		} else if item.Kind == classifier.KindToolCall && !slices.Contains(a.openTools[item.ToolName], key) {
			a.openTools[item.ToolName] = append(a.openTools[item.ToolName], key)
		}
	}
	return delta
}

// openCall returns the newest open call for name that carries no
// correlation id, or "".
func (a *Accumulator) openCall(name string) string {
	keys := a.openTools[name]
	for i := len(keys) - 1; i >= 0; i-- {
		if strings.HasPrefix(keys[i], toolKeyPrefix) {
			return keys[i]
		}
	}
	return ""
}

func (a *Accumulator) applyText(sc scope, msg chat.Message) Delta {
	key := a.segments[sc.base]
	if key == "" {
		a.segmentCount[sc.base]++
		key = sc.base
		if n := a.segmentCount[sc.base]; n > 1 {
			key = fmt.Sprintf("%s#%d", sc.base, n)
		}
		a.segments[sc.base] = key
		return a.upsert(key, msg, classText, false)
	}

	prev := a.entries[key]
	next := mergeText(prev.msg, msg, sc.append)
	prev.msg = next
	a.entries[key] = prev
	return a.delta(DeltaUpdated, key, next)
}

func (a *Accumulator) closeSegment(base string) []Delta {
	key, ok := a.segments[base]
	if !ok {
		return nil
	}
	delete(a.segments, base)
	e := a.entries[key]
	if !e.open {
		return nil
	}
	return []Delta{a.finalize(key, e)}
}

// upsert creates or merges the item under key.
func (a *Accumulator) upsert(key string, msg chat.Message, class itemClass, terminal bool) Delta {
	prev, exists := a.entries[key]
	if !exists {
		a.order = append(a.order, key)
		e := entry{msg: msg, class: class, open: !terminal}
		if terminal {
			return a.finalize(key, e)
		}
		a.entries[key] = e
		return a.delta(DeltaOpened, key, msg)
	}

	prev.msg = mergeMessage(prev.msg, msg)
	if terminal {
		return a.finalize(key, prev)
	}
	a.entries[key] = prev
	return a.delta(DeltaUpdated, key, prev.msg)
}

func (a *Accumulator) finalize(key string, e entry) Delta {
	e.open = false
	a.entries[key] = e
	return a.delta(DeltaFinalized, key, e.msg)
}

func (a *Accumulator) delta(typ DeltaType, key string, msg chat.Message) Delta {
	a.seq++
	a.tr.Metrics().RecordDelta(string(typ))
	return Delta{Seq: a.seq, Type: typ, ItemID: key, Message: msg}
}

func stepsTerminal(msg chat.Message) bool {
	steps := msg.Steps()
	if len(steps) == 0 {
		return false
	}
	for _, s := range steps {
		if !s.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// mergeMessage folds next into prev. Payloads are rebuilt, never mutated,
// so snapshots already handed out stay unchanged.
func mergeMessage(prev, next chat.Message) chat.Message {
	out := next
	out.ID = prev.ID
	if out.From == nil {
		out.From = prev.From
	}
	if len(prev.Metadata) > 0 || len(next.Metadata) > 0 {
		out.Metadata = maps.Clone(prev.Metadata)
		if out.Metadata == nil {
			out.Metadata = map[string]any{}
		}
		maps.Copy(out.Metadata, next.Metadata)
	}

	if prev.Kind != next.Kind {
		return out
	}
	ps, ns := prev.Steps(), next.Steps()
	if len(ps) != 1 || len(ns) != 1 {
		return out
	}
	payload := &chat.StepsPayload{Steps: []chat.Step{mergeStep(ps[0], ns[0])}}
	if next.Kind == chat.KindChainOfThought {
		out.ChainOfThought = payload
	} else {
		out.Reasoning = payload
	}
	return out
}

func mergeStep(prev, next chat.Step) chat.Step {
	out := chat.Step{
		Title:       latest(prev.Title, next.Title),
		ToolName:    latest(prev.ToolName, next.ToolName),
		Description: latest(prev.Description, next.Description),
		Request:     prev.Request,
		Response:    prev.Response,
		Status:      next.Status,
	}
	if next.Request != nil && len(next.Request.Args) > 0 {
		args := map[string]any{}
		if prev.Request != nil {
			maps.Copy(args, prev.Request.Args)
		}
		maps.Copy(args, next.Request.Args)
		out.Request = &chat.StepRequest{Args: args}
	}
	if next.Response != nil {
		out.Response = &chat.StepResponse{Content: next.Response.Content}
	}
	if out.Status == "" {
		out.Status = prev.Status
	}
	return out
}

func mergeText(prev, next chat.Message, appendText bool) chat.Message {
	out := mergeMessage(prev, next)
	if prev.Text == nil || next.Text == nil {
		return out
	}
	payload := &chat.TextPayload{Text: next.Text.Text, Citations: next.Text.Citations}
	if appendText {
		payload.Text = prev.Text.Text + next.Text.Text
		payload.Citations = append(slices.Clone(prev.Text.Citations), next.Text.Citations...)
	}
	out.Text = payload
	return out
}

func withStepStatus(msg chat.Message, status chat.StepStatus) chat.Message {
	steps := msg.Steps()
	if len(steps) == 0 {
		return msg
	}
	updated := make([]chat.Step, len(steps))
	for i, s := range steps {
		if !s.Status.IsTerminal() {
			s.Status = status
		}
		updated[i] = s
	}
	payload := &chat.StepsPayload{Steps: updated}
	if msg.Kind == chat.KindChainOfThought {
		msg.ChainOfThought = payload
	} else {
		msg.Reasoning = payload
	}
	return msg
}

func latest(prev, next string) string {
	if next != "" {
		return next
	}
	return prev
}
