package dynamo

// DynamoDB attribute and index names for the users table.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID    = "user_id"
	fieldUsername  = "username"
	fieldEmail     = "email"
	fieldUpdatedAt = "updated_at"

	indexUsername = "username-index"
	indexEmail    = "email-index"
)
