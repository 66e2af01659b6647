package rfd

// Pattern is one entry of the detection taxonomy.
type Pattern struct {
	Name        string
	Description string
}

// Taxonomy lists the seven communication patterns the detector looks for.
var Taxonomy = []Pattern{
	{"CRITICISM", "Attacking character/personality rather than specific behavior"},
	{"CONTEMPT", "Disrespect, mockery, sarcasm, superiority, name-calling (MOST destructive)"},
	{"DEFENSIVENESS", "Playing victim, making excuses, counter-attacking, blame-shifting"},
	{"STONEWALLING", "Withdrawal, silent treatment, shutting down"},
	{"GASLIGHTING", "Denying reality, questioning sanity, rewriting history"},
	{"MANIPULATION", "Guilt-tripping, emotional blackmail, conditional love"},
	{"THREATS", "Ultimatums, abandonment threats, \"or else\" statements"},
}
