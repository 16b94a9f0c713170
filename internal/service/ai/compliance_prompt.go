package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultSystemPrompt is used until the user has picked a form.
const DefaultSystemPrompt = "You are a helpful OSHA compliance assistant. Start by asking which form is needed (300, 300A, or 301)."

// FormField is one value the assistant collects for a form.
type FormField struct {
	Key   string
	Label string
}

// formFields 按表单类型列出待收集的字段，顺序即提问顺序
var formFields = map[string][]FormField{
	"300": {
		{Key: "establishment_name", Label: "Company's Name"},
		{Key: "city", Label: "City"},
		{Key: "state", Label: "State"},
		{Key: "year_of_log", Label: "Year of the log"},
		{Key: "case_number", Label: "Case number"},
		{Key: "employee_name", Label: "Employee's name"},
		{Key: "job_title", Label: "Employee's job title"},
		{Key: "date_of_injury", Label: "Date of the injury or illness (e.g., MM/DD)"},
		{Key: "location_of_event", Label: "Location where the event occurred"},
		{Key: "description_of_injury", Label: "Description of the injury/illness, parts of body affected, and object/substance that directly injured or made person ill"},
		{Key: "classification", Label: "Classification of the case (death, days away, job transfer, or other recordable)"},
		{Key: "days_away_from_work", Label: "Number of days away from work"},
		{Key: "days_on_transfer_or_restriction", Label: "Number of days on job transfer or restriction"},
		{Key: "type_of_injury_or_illness", Label: "Type of injury or illness (e.g., injury, skin disorder, respiratory condition, poisoning, hearing loss, or all other illnesses)"},
	},
}

var generateFormAction = regexp.MustCompile(`\{\s*"action"\s*:\s*"generate_form"\s*\}`)

// FormFields returns the ordered fields for a form type, nil when unknown.
func FormFields(formType string) []FormField {
	return formFields[strings.ToLower(formType)]
}

// DetectFormType looks for a form number in a user message.
func DetectFormType(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "300a"):
		return "300a"
	case strings.Contains(lower, "301"):
		return "301"
	case strings.Contains(lower, "300"):
		return "300"
	default:
		return ""
	}
}

// IsGenerateFormAction reports whether the model asked for the form to be produced.
func IsGenerateFormAction(reply string) bool {
	return generateFormAction.MatchString(reply)
}

// MissingFields returns the fields of formType that have no collected value yet.
func MissingFields(formType string, collected map[string]string) []FormField {
	var missing []FormField
	for _, field := range FormFields(formType) {
		if strings.TrimSpace(collected[field.Key]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// PromptManager builds the prompts for the form-filling conversation.
type PromptManager struct{}

// NewPromptManager creates a prompt manager.
func NewPromptManager() *PromptManager {
	return &PromptManager{}
}

// BuildSystemPrompt picks the instruction for the current stage of the form.
func (pm *PromptManager) BuildSystemPrompt(formType string, collected map[string]string) string {
	if formType == "" {
		return DefaultSystemPrompt
	}

	fields := FormFields(formType)
	if len(fields) == 0 {
		return fmt.Sprintf("You are a helpful OSHA compliance assistant. The user is working on OSHA form %s. Answer their questions about it concisely.", strings.ToUpper(formType))
	}

	missing := MissingFields(formType, collected)
	if len(missing) == 0 {
		return fmt.Sprintf(`SYSTEM TASK: Your ONLY job is to determine if the user wants to generate the OSHA %s form.
- If the user's intent is to generate the form, your response MUST be a single, raw JSON object and NOTHING ELSE.
- The JSON object MUST be: {"action": "generate_form"}
- Do NOT add any conversational text, markdown, or anything other than the raw JSON object.

If the user is not asking to generate the form, you may have a normal conversation.`, strings.ToUpper(formType))
	}

	have := make([]string, 0, len(collected))
	for _, field := range fields {
		if strings.TrimSpace(collected[field.Key]) != "" {
			have = append(have, field.Key)
		}
	}

	return fmt.Sprintf("You are a friendly and efficient OSHA compliance assistant. Your current goal is to collect information for the OSHA %s form. You have already collected: [%s]. Ask a concise question to get the next piece of information: %s.",
		strings.ToUpper(formType), strings.Join(have, ", "), missing[0].Label)
}

// BuildExtractionPrompt asks the model to pull form values out of one user message.
func (pm *PromptManager) BuildExtractionPrompt(formType, userMessage string) string {
	labels := make(map[string]string)
	for _, field := range FormFields(formType) {
		labels[field.Key] = field.Label
	}
	encoded, _ := json.MarshalIndent(labels, "", "  ")

	return fmt.Sprintf(`You are an expert data extraction AI. Your job is to extract any and all relevant information from a user's message to fill out an OSHA form.
Here are the possible fields: %s.

The user's message is: %q

Extract any fields you can from the user's message.
Return ONLY a valid JSON object with the extracted data. If no relevant data is found, return an empty JSON object {}.`, encoded, userMessage)
}

// parseExtraction decodes the model's JSON answer, keeping only known fields.
func parseExtraction(formType, content string) (map[string]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}

	out := make(map[string]string)
	for _, field := range FormFields(formType) {
		value, ok := raw[field.Key]
		if !ok || value == nil {
			continue
		}
		text := strings.TrimSpace(fmt.Sprint(value))
		if text != "" {
			out[field.Key] = text
		}
	}
	return out, nil
}
