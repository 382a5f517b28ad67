package pipeline

import "fmt"

// Pipeline step names. Checkpoints record these; resume mode selection
// keys off the outreach step name, so renames are breaking.
const (
	StepScraping         = "scraping"
	StepEnriching        = "enriching"
	StepScoring          = "scoring"
	StepOutreach         = "outreach"
	StepResuming         = "resuming"
	StepResumingOutreach = "resuming_outreach"
)

var stepMessages = map[string]string{
	StepScraping:         "Scraping Google Maps",
	StepEnriching:        "Enriching leads",
	StepScoring:          "Scoring leads",
	StepOutreach:         "Generating outreach",
	StepResuming:         "Resuming job",
	StepResumingOutreach: "Resuming outreach",
}

// StepMessage translates a step name into the human progress message
func StepMessage(step string, current, total int) string {
	if msg, ok := stepMessages[step]; ok {
		return msg
	}
	return fmt.Sprintf("%s (%d/%d)...", step, current, total)
}
