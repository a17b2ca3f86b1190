package vision

import "fmt"

const instructionTemplate = `You are looking at a photo of a retail shoe wall.

Identify up to %d distinct shoes that are visible. For each shoe return:
- raw_label: the text you read on the shoe, tag or shelf, or a short visual description
- brand and model: only when you are confident, otherwise null
- confidence: a number between 0 and 1 for the brand/model identification
- bbox: the shoe's bounding box as {x, y, w, h} normalized to the image size (0..1, origin top-left), or null if you cannot localize it
- notes: anything relevant (colorway, partially hidden), or null

Also rate image_quality with lighting (good|ok|bad), blur (none|mild|high) and occlusion (none|some|heavy).
Use errors for problems worth reporting, as [{"code": "...", "message": "..."}], or [].

Respond with a single JSON object of the form
{"candidates": [...], "image_quality": {...}, "errors": [...]}
and nothing else.`

// Instruction is the task description sent with every detection call
func Instruction(maxCandidates int) string {
	return fmt.Sprintf(instructionTemplate, maxCandidates)
}
