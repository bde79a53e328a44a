package outcome

// Outcome labels. These are stable API values; renaming one is a breaking
// change for stored campaign results.
const (
	LabelVoicemail    = "Voicemail"
	LabelFailed       = "Failed"
	LabelBusy         = "Busy"
	LabelNoAnswer     = "No Answer"
	LabelAppointment  = "Appointment Scheduled"
	LabelSuccessful   = "Successful"
	LabelTransferred  = "Transferred"
	LabelFollowUp     = "Follow-up Required"
	LabelCallback     = "Callback Requested"
	LabelInterested   = "Interested"
	LabelNotInterested = "Not Interested"
	LabelWrongNumber  = "Wrong Number"
	LabelDoNotCall    = "Do Not Call"
	LabelHungUp       = "Hung Up"
	LabelInfoProvided = "Information Provided"
	LabelUnknown      = "Unknown"
)

// Category is the coarse reporting bucket for an outcome.
type Category string

const (
	CategoryPositive Category = "positive"
	CategoryNeutral  Category = "neutral"
	CategoryNegative Category = "negative"
)

// categories is a static lookup, never re-derived from the rules.
var categories = map[string]Category{
	LabelAppointment:   CategoryPositive,
	LabelSuccessful:    CategoryPositive,
	LabelTransferred:   CategoryPositive,
	LabelInterested:    CategoryPositive,
	LabelVoicemail:     CategoryNeutral,
	LabelBusy:          CategoryNeutral,
	LabelNoAnswer:      CategoryNeutral,
	LabelFollowUp:      CategoryNeutral,
	LabelCallback:      CategoryNeutral,
	LabelInfoProvided:  CategoryNeutral,
	LabelHungUp:        CategoryNeutral,
	LabelUnknown:       CategoryNeutral,
	LabelFailed:        CategoryNegative,
	LabelNotInterested: CategoryNegative,
	LabelWrongNumber:   CategoryNegative,
	LabelDoNotCall:     CategoryNegative,
}

// CategoryOf returns the reporting category for a label. Unlisted labels
// report as neutral.
func CategoryOf(label string) Category {
	if c, ok := categories[label]; ok {
		return c
	}
	return CategoryNeutral
}

// flagRule maps boolean keys in extracted data to a label. Rules are
// evaluated strictly in order; the first truthy key wins.
type flagRule struct {
	Keys  []string
	Label string
}

// extractedFlagRules, priority order:
// appointment > success > transfer > follow-up > callback > interest > DNC.
var extractedFlagRules = []flagRule{
	{Keys: []string{"appointment_scheduled", "appointment_booked", "meeting_scheduled"}, Label: LabelAppointment},
	{Keys: []string{"success", "sale_completed", "goal_achieved"}, Label: LabelSuccessful},
	{Keys: []string{"transferred", "transfer_requested"}, Label: LabelTransferred},
	{Keys: []string{"follow_up_required", "needs_follow_up"}, Label: LabelFollowUp},
	{Keys: []string{"callback_requested", "callback_scheduled"}, Label: LabelCallback},
	{Keys: []string{"interested", "wants_more_info"}, Label: LabelInterested},
	{Keys: []string{"do_not_call", "dnc_requested"}, Label: LabelDoNotCall},
}

// keywordRule maps text phrases to a label. Ordered: first category whose
// keyword appears in the scanned text wins.
type keywordRule struct {
	Label string
	// SentimentGate, when set, suppresses the rule if the call sentiment
	// equals the gate value.
	SentimentGate string
	Phrases       []string
}

// textRules drive both the transcript scan and the (lower-priority)
// summary scan. Matching is case-insensitive substring membership.
//
// Interest-positive is gated on sentiment: "I'm interested" in an angry
// call is sarcasm more often than signal.
var textRules = []keywordRule{
	{Label: LabelAppointment, Phrases: []string{
		"appointment scheduled", "booked an appointment", "scheduled a meeting",
		"see you on", "calendar invite",
	}},
	{Label: LabelSuccessful, Phrases: []string{
		"signed up", "completed the purchase", "placed the order", "confirmed the order",
	}},
	{Label: LabelTransferred, Phrases: []string{
		"transferring you", "transfer you to", "connect you with",
	}},
	{Label: LabelFollowUp, Phrases: []string{
		"follow up with", "send me more information", "email me the details",
	}},
	{Label: LabelCallback, Phrases: []string{
		"call me back", "call back later", "better time to call",
	}},
	{Label: LabelInterested, SentimentGate: "negative", Phrases: []string{
		"i'm interested", "sounds interesting", "tell me more", "very interested",
	}},
	{Label: LabelNotInterested, Phrases: []string{
		"not interested", "no thank you", "stop calling", "don't call",
	}},
	{Label: LabelWrongNumber, Phrases: []string{
		"wrong number", "no one by that name", "never heard of",
	}},
	{Label: LabelDoNotCall, Phrases: []string{
		"do not call", "remove me from your list", "take me off your list",
	}},
}

// voicemailPhrases is the transcript heuristic for machine pickup. It is a
// best-effort approximation: a short live call that happens to contain one
// of these phrases will be misclassified, which is accepted. An explicit
// provider voicemail signal always takes priority over this list.
var voicemailPhrases = []string{
	"leave a message",
	"leave your message",
	"after the tone",
	"after the beep",
	"at the tone",
	"is not available right now",
	"mailbox is full",
	"record your message",
	"voicemail",
}
