package api

// SignupRequest представляет запрос на регистрацию нового пользователя
type SignupRequest struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password"`
	GroupID     *int64 `json:"group_id,omitempty"`
}

// LoginRequest представляет запрос на аутентификацию.
// login принимает email, username или номер телефона.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// RefreshRequest представляет запрос на ротацию refresh токена
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ResetPasswordRequest представляет запрос на сброс пароля
type ResetPasswordRequest struct {
	Email string `json:"email"`
}

// TokenResponse представляет ответ с парой токенов
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  // JWT access token
	RefreshToken string `json:"refresh_token"` // непрозрачный refresh token
	TokenType    string `json:"token_type"`    // всегда "bearer"
}

// MessageResponse представляет ответ с информационным сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
