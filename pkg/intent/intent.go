package intent

import "strings"

// Intent is a caller intent label detected from an utterance.
type Intent string

const (
	Greeting           Intent = "greeting"
	HoursInquiry       Intent = "hours_inquiry"
	LocationInquiry    Intent = "location_inquiry"
	MenuInquiry        Intent = "menu_inquiry"
	OrderRequest       Intent = "order_request"
	ReservationRequest Intent = "reservation_request"
	Complaint          Intent = "complaint"
	DeliveryInquiry    Intent = "delivery_inquiry"
	Closing            Intent = "closing"
	ContactStaff       Intent = "contact_staff"
	GeneralInquiry     Intent = "general_inquiry"
)

// keywordTable maps each intent to its trigger phrases. Table order is the
// scan order, which fixes which intent wins the primary slot on overlap.
type keywordEntry struct {
	intent   Intent
	keywords []string
}

var keywordTable = []keywordEntry{
	{Greeting, []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}},
	{HoursInquiry, []string{"open", "close", "hours", "time", "when", "what time", "what are your hours"}},
	{LocationInquiry, []string{"where", "address", "location", "find", "direction", "located"}},
	{MenuInquiry, []string{"menu", "food", "what do you", "what's on", "offer", "have"}},
	{OrderRequest, []string{"order", "place", "buy", "get", "delivery", "takeout", "take out"}},
	{ReservationRequest, []string{"reservation", "book", "table", "seat", "reserve"}},
	{Complaint, []string{"problem", "issue", "wrong", "not", "complaint", "angry", "upset", "terrible", "bad"}},
	{DeliveryInquiry, []string{"delivery", "takeout", "take out", "pickup", "pick up", "carryout"}},
	{Closing, []string{"bye", "goodbye", "thanks", "thank you", "that's all", "see you", "later"}},
	{ContactStaff, []string{"speak", "talk", "manager", "human", "staff", "person", "someone"}},
}

// escalating marks the intents that hand the call to a human.
var escalating = map[Intent]bool{
	OrderRequest:       true,
	ReservationRequest: true,
	Complaint:          true,
	ContactStaff:       true,
}

// Result is the outcome of classifying one utterance.
type Result struct {
	// Primary is the first intent detected in table order,
	// or GeneralInquiry when nothing matched.
	Primary Intent
	// All lists every detected intent in table order, without duplicates.
	All []Intent
	// Escalate reports whether any detected intent requires a human.
	Escalate bool
}

// Classify detects intents by case-insensitive substring match against the
// keyword table. An utterance with no matches yields GeneralInquiry.
func Classify(utterance string) Result {
	lowered := strings.ToLower(utterance)

	var detected []Intent
	seen := make(map[Intent]bool)
	for _, entry := range keywordTable {
		if seen[entry.intent] {
			continue
		}
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				detected = append(detected, entry.intent)
				seen[entry.intent] = true
				break
			}
		}
	}

	if len(detected) == 0 {
		return Result{Primary: GeneralInquiry, All: []Intent{GeneralInquiry}}
	}

	res := Result{Primary: detected[0], All: detected}
	for _, in := range detected {
		if escalating[in] {
			res.Escalate = true
			break
		}
	}
	return res
}

// RequiresEscalation reports whether the intent hands the call to a human.
func RequiresEscalation(in Intent) bool {
	return escalating[in]
}
