package translator

import (
	"maps"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/classifier"
	"github.com/kadirpekel/a2achat/pkg/protocol"
)

// TranslateTask translates a completed task in one pass. Artifacts are
// visited in order; each artifact's own trajectory metadata precedes its
// parts. Messages derived from the task status come last.
func (t *Translator) TranslateTask(task *a2a.Task) []chat.Message {
	if task == nil {
		return nil
	}
	var items []Item
	for _, art := range task.Artifacts {
		items = append(items, t.ArtifactItems(art, ModeFinal)...)
	}
	items = append(items, t.StatusItems(task.Status, len(task.Artifacts) > 0, ModeFinal)...)
	if len(task.Metadata) > 0 {
		if detail := t.ext.ErrorDetail(task.Metadata); detail != nil {
			items = append(items, t.errorItem(*detail))
		}
	}

	t.logger.Debug("Translated task",
		"task_id", string(task.ID),
		"state", string(task.Status.State),
		"artifacts", len(task.Artifacts),
		"messages", len(items))
	return messages(items)
}

// ArtifactItems translates an artifact: artifact-level trajectory first,
// then every part in order.
func (t *Translator) ArtifactItems(art *a2a.Artifact, mode Mode) []Item {
	if art == nil {
		return nil
	}
	items := t.MetadataItems(art.Metadata, mode)
	for _, part := range art.Parts {
		items = append(items, t.PartItems(part, mode)...)
	}
	return items
}

// TranslateMessage translates a message: message-level trajectory, error
// and form metadata first, then its parts.
func (t *Translator) TranslateMessage(msg *a2a.Message, mode Mode) []chat.Message {
	return messages(t.MessageItems(msg, mode))
}

// MessageItems is TranslateMessage with correlation hints.
func (t *Translator) MessageItems(msg *a2a.Message, mode Mode) []Item {
	if msg == nil {
		return nil
	}
	items := t.MetadataItems(msg.Metadata, mode)
	if form := t.ext.Form(msg.Metadata); form != nil {
		items = append(items, t.emit(chat.NewForm(*form), classifier.KindData))
	}
	for _, part := range msg.Parts {
		items = append(items, t.PartItems(part, mode)...)
	}
	return items
}

// StatusItems translates the messages implied by a task status.
//
// A failed task yields an error, from the error extension when present and
// otherwise from the status message text. An input-required task yields the
// form request when one is attached, otherwise the status message content.
// Other states translate the status message only when the task carries no
// artifacts, since servers that use artifacts repeat the answer there.
func (t *Translator) StatusItems(status a2a.TaskStatus, hasArtifacts bool, mode Mode) []Item {
	msg := status.Message
	var meta map[string]any
	if msg != nil {
		meta = msg.Metadata
	}

	switch status.State {
	case a2a.TaskStateFailed, a2a.TaskStateRejected:
		if detail := t.ext.ErrorDetail(meta); detail != nil {
			return []Item{t.errorItem(*detail)}
		}
		text := strings.TrimSpace(protocol.MessageText(msg))
		if text == "" {
			text = "task " + string(status.State)
		}
		return []Item{t.emit(chat.NewError("Task failed", text, string(status.State), nil), classifier.KindError)}

	case a2a.TaskStateInputRequired:
		if form := t.ext.Form(meta); form != nil {
			items := t.MetadataItems(meta, mode)
			return append(items, t.emit(chat.NewForm(*form), classifier.KindData))
		}
		return t.MessageItems(msg, mode)
	}

	if hasArtifacts {
		var items []Item
		if detail := t.ext.ErrorDetail(meta); detail != nil {
			items = append(items, t.errorItem(*detail))
		}
		return items
	}
	return t.MessageItems(msg, mode)
}

func (t *Translator) errorItem(detail protocol.ErrorDetail) Item {
	message := firstNonEmpty(detail.Message, detail.Title)
	errContext := maps.Clone(detail.Context)
	if detail.Stacktrace != "" {
		if errContext == nil {
			errContext = map[string]any{}
		}
		errContext["stacktrace"] = detail.Stacktrace
	}
	return t.emit(chat.NewError(detail.Title, message, detail.Code, errContext), classifier.KindError)
}
