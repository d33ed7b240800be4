package registration

import "santabot/backend/internal/models"

// Step is one question of the private registration dialogue.
type Step struct {
	// Field receives the answer given while the step is current.
	Field models.Field
	// Prompt is the localization key asking for Field.
	Prompt string
}

// Steps are asked in order. The cursor stored in the session indexes this
// table; a cursor equal to len(Steps) means every field was collected.
var Steps = [...]Step{
	{Field: models.FieldFullName, Prompt: "step_annotation_fill_info_name"},
	{Field: models.FieldPhone, Prompt: "step_annotation_fill_info_number"},
	{Field: models.FieldCity, Prompt: "step_annotation_fill_info_city"},
	{Field: models.FieldPickupPoint, Prompt: "step_annotation_fill_info_np_no"},
}

// Localization keys used outside the step table.
const (
	KeyWelcome          = "private_chat_welcome_user"
	KeyWelcomeStep      = "step_annotation_welcome"
	KeyRegisterData     = "step_annotation_register_data"
	KeyRegisterButton   = "step_annotation_register_button"
	KeyRegistered       = "step_annotation_end_registered"
	KeyAlreadyExists    = "step_annotation_end_already_registered"
	KeyResultTarget     = "result_target"
	KeyResultWithRest   = "result_target_with_rest"
	KeySessionLeft      = "session_left"
	KeyGenericError     = "generic_error"
	keyFieldName        = "db_to_message_field_name"
	keyFieldNumber      = "db_to_message_field_number"
	keyFieldCity        = "db_to_message_field_city"
	keyFieldPickupPoint = "db_to_message_field_np_no"
)

// fieldLabelKeys maps each public field to its label key.
var fieldLabelKeys = map[models.Field]string{
	models.FieldFullName:    keyFieldName,
	models.FieldPhone:       keyFieldNumber,
	models.FieldCity:        keyFieldCity,
	models.FieldPickupPoint: keyFieldPickupPoint,
}

// Exhausted reports whether cursor is past the last step.
func Exhausted(cursor int) bool {
	return cursor >= len(Steps)
}
