// Package texts holds the user-facing message catalogue. Handlers and
// workflow components always answer with one of these strings so the
// client can render a status line without interpreting error codes.
package texts

const (
	CodeSentSMS      = "The confirmation code was sent to %s"
	CodeSentTryLater = "Could not send the confirmation code to %s, please try again later"
	CodeSMSBody      = "Your confirmation code: %s. Do not share it with anyone."
	WrongCode        = "Wrong confirmation code"
	Confirmed        = "The code is confirmed"

	ContractEditSMSBody   = "Code to confirm the contract data change: %s"
	ContractCancelSMSBody = "Code to confirm the contract cancellation: %s"
	MNPSMSBody            = "Code to confirm the number transfer: %s"
	FixPaySMSBody         = "Code to confirm the payment correction: %s"

	OrderNotFound  = "Request not found"
	OrderCompleted = "The request has already been processed"

	WrongPhone        = "Check the phone number"
	SomethingWrong    = "Something went wrong, please try again"
	DataCheckFailed   = "Data check failed. Check your input"
	NoDocumentData    = "The billing has no document data for the subscriber"
	MNPEqualOperators = "The number is already served by our network"
	MNPDiffRegions    = "The number belongs to a different region"
	MNP60Days         = "The number was transferred less than 60 days ago"
	MNPNumberRequired = "Enter the number you want to transfer"
	MNPCompletedIn    = "The number will be transferred %s %s."

	CancelLinkExpired      = "The contract cancellation link has expired"
	CancelLinkInvalid      = "Invalid contract cancellation link"
	CancelLinkWrongNumber  = "This link was issued for another number"
	ContractDone           = "The request is accepted. We will email you a copy of the documents."
	MNPCredentialsSMSBody  = "Track the transfer of the number %s in the app. Login: %s, password: %s"
	ChangeNumberCompleted  = "The number has been changed"
	ChangeNumberUnavail    = "The selected number is no longer available"
	FixPayCompleted        = "The correction request is accepted"
	FixPayWrongCode        = "Wrong code. "
	FeedbackSuccess        = "Thank you! We will get back to you shortly."
	FeedbackEnterName      = "Enter your name"
	FeedbackEnterPhone     = "Enter a contact phone"
	FeedbackEnterEmail     = "Enter a contact email"
	FeedbackEnterQuestion  = "Enter your question"
	CourierStatusUnavail   = "Delivery status is temporarily unavailable"
)
