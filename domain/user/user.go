package user

// User is the durable account record. Followers and Following are symmetric
// duals stored on two different records; the toggle engine owns keeping them
// in step. Password never leaves the process: json:"-".
type User struct {
	Id        string   `json:"id" bson:"id"`
	Username  string   `json:"username" bson:"username"`
	Email     string   `json:"email" bson:"email"`
	Password  string   `json:"-" bson:"password"`
	Followers []string `json:"followers" bson:"followers"`
	Following []string `json:"following" bson:"following"`
}

// Public is the wire shape for GET /users/{id}: the record minus secret fields.
type Public struct {
	Id        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Followers []string `json:"followers"`
	Following []string `json:"following"`
}

func (u *User) ToPublic() Public {
	return Public{
		Id:        u.Id,
		Username:  u.Username,
		Email:     u.Email,
		Followers: u.Followers,
		Following: u.Following,
	}
}
