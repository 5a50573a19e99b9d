package normalize

import (
	"strings"

	"bondedlink/internal/link/model"
)

type CardKind string

const (
	KindProfile CardKind = "profile"
	KindEvent   CardKind = "event"
	KindOrg     CardKind = "org"
	KindPost    CardKind = "post"
)

// Card is one result entity rendered as its own assistant message.
type Card struct {
	Kind         CardKind
	Metadata     model.Metadata
	FallbackText string
}

var kindAliases = map[string]CardKind{
	"people":        KindProfile,
	"person":        KindProfile,
	"profile":       KindProfile,
	"profiles":      KindProfile,
	"users":         KindProfile,
	"user":          KindProfile,
	"event":         KindEvent,
	"events":        KindEvent,
	"org":           KindOrg,
	"orgs":          KindOrg,
	"organization":  KindOrg,
	"organizations": KindOrg,
	"club":          KindOrg,
	"clubs":         KindOrg,
	"post":          KindPost,
	"posts":         KindPost,
}

var structuralHints = []struct {
	kind   CardKind
	fields []string
}{
	{KindProfile, []string{"user_id", "profile_id", "username", "full_name"}},
	{KindEvent, []string{"event_id", "start_at", "end_at"}},
	{KindOrg, []string{"org_id", "organization_id", "logo_url"}},
	{KindPost, []string{"post_id", "forum_id", "upvotes_count", "comments_count"}},
}

// BuildCards only produces cards when the payload says outreach is not needed
// and carries a non-empty result list. Entities that cannot be classified are
// skipped.
func BuildCards(obj map[string]any) []Card {
	if need, ok := obj["need_outreach"].(bool); !ok || need {
		return nil
	}

	results, hint := resultList(obj)
	if len(results) == 0 {
		return nil
	}

	cards := make([]Card, 0, len(results))
	for _, r := range results {
		entity, ok := asMap(r)
		if !ok {
			continue
		}
		kind, ok := InferCardType(hint, entity)
		if !ok {
			continue
		}
		cards = append(cards, buildCard(kind, model.Metadata(entity)))
	}
	if len(cards) == 0 {
		return nil
	}
	return cards
}

func resultList(obj map[string]any) ([]any, string) {
	data, _ := asMap(obj["data"])
	payload, _ := asMap(obj["payload"])

	hint := model.Metadata(obj).FirstText("type")
	if hint == "" {
		hint = model.Metadata(data).FirstText("type")
	}
	if hint == "" {
		hint = model.Metadata(payload).FirstText("type")
	}
	if hint == "" {
		hint = model.Metadata(obj).FirstText("shareType")
	}

	for _, source := range []struct {
		container map[string]any
		keys      []string
	}{
		{data, []string{"results", "items"}},
		{payload, []string{"results", "items"}},
		{obj, []string{"results", "matches"}},
	} {
		for _, key := range source.keys {
			if list, ok := source.container[key].([]any); ok && len(list) > 0 {
				return list, hint
			}
		}
	}
	return nil, hint
}

// InferCardType classifies an entity using, in order, the payload-level type
// hint, the entity's own type field and finally which identifying fields it
// carries.
func InferCardType(hint string, entity map[string]any) (CardKind, bool) {
	if kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(hint))]; ok {
		return kind, true
	}
	if own, ok := entity["type"].(string); ok {
		if kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(own))]; ok {
			return kind, true
		}
	}
	for _, h := range structuralHints {
		for _, f := range h.fields {
			if v, present := entity[f]; present && v != nil {
				return h.kind, true
			}
		}
	}
	return "", false
}

type field struct {
	key     string
	aliases []string
}

var cardFields = map[CardKind][]field{
	KindEvent: {
		{"event_id", []string{"id"}},
		{"title", []string{"name"}},
		{"start_at", []string{"start_time", "starts_at"}},
		{"end_at", []string{"end_time", "ends_at"}},
		{"location_name", []string{"location"}},
		{"image_url", []string{"cover_image_url", "image"}},
		{"attendee_count", []string{"attendees_count", "going_count"}},
	},
	KindPost: {
		{"post_id", []string{"id"}},
		{"forum_id", nil},
		{"title", nil},
		{"body", []string{"content", "text"}},
		{"image_url", []string{"media_url"}},
		{"forum_name", nil},
		{"comments_count", nil},
		{"upvotes_count", []string{"likes_count"}},
	},
	KindProfile: {
		{"user_id", []string{"profile_id", "id"}},
		{"full_name", []string{"name", "display_name"}},
		{"username", nil},
		{"avatar_url", []string{"profile_picture", "avatar"}},
		{"major", nil},
		{"graduation_year", []string{"grad_year"}},
		{"mutual_friends", []string{"mutual_friends_count"}},
	},
	KindOrg: {
		{"org_id", []string{"organization_id", "id"}},
		{"name", []string{"title"}},
		{"category", nil},
		{"logo_url", []string{"image_url"}},
		{"member_count", []string{"members_count"}},
	},
}

var fallbackLabels = map[CardKind]string{
	KindEvent:   "Event",
	KindPost:    "Post",
	KindProfile: "Profile",
	KindOrg:     "Organization",
}

func buildCard(kind CardKind, entity model.Metadata) Card {
	meta := model.Metadata{}
	for _, f := range cardFields[kind] {
		for _, key := range append([]string{f.key}, f.aliases...) {
			if v, present := entity[key]; present && v != nil {
				meta[f.key] = v
				break
			}
		}
	}

	return Card{
		Kind:         kind,
		Metadata:     meta,
		FallbackText: fallbackText(kind, meta),
	}
}

func fallbackText(kind CardKind, meta model.Metadata) string {
	var text string
	switch kind {
	case KindEvent:
		text = meta.FirstText("title")
	case KindPost:
		text = meta.FirstText("title")
		if text == "" {
			text = truncate(meta.FirstText("body"), 80)
		}
	case KindProfile:
		text = meta.FirstText("full_name", "username")
	case KindOrg:
		text = meta.FirstText("name")
	}
	if text == "" {
		return fallbackLabels[kind]
	}
	return text
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
