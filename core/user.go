package core

type (
	// User is the identity-provider profile carried in session tokens.
	User struct {
		Subject   string `json:"subject"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatarUrl"`
		Name      string `json:"name"`
	}
)
