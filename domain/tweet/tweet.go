package tweet

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tweet is the durable post record. Likes and Retweets hold user ids; both are
// toggled sets, never appended blindly. AuthorId and CreatedAt are fixed at
// creation time.
type Tweet struct {
	Id        string    `json:"id" bson:"id"`
	Content   string    `json:"content" bson:"content"`
	AuthorId  string    `json:"authorId" bson:"authorId"`
	Likes     []string  `json:"likes" bson:"likes"`
	Retweets  []string  `json:"retweets" bson:"retweets"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type TweetWithOID struct {
	ID        primitive.ObjectID `bson:"_id"`
	Id        string             `bson:"id"`
	Content   string             `bson:"content"`
	AuthorId  string             `bson:"authorId"`
	Likes     []string           `bson:"likes"`
	Retweets  []string           `bson:"retweets"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (two *TweetWithOID) ToTweet() Tweet {
	return Tweet{
		Id:        two.Id,
		Content:   two.Content,
		AuthorId:  two.AuthorId,
		Likes:     two.Likes,
		Retweets:  two.Retweets,
		CreatedAt: two.CreatedAt,
	}
}

// HasMember reports whether userId is present in the given id set.
func HasMember(set []string, userId string) bool {
	for _, id := range set {
		if id == userId {
			return true
		}
	}
	return false
}

// ToggleMember flips membership of userId in set and returns the new set plus
// the resulting membership state.
func ToggleMember(set []string, userId string) ([]string, bool) {
	if !HasMember(set, userId) {
		return append(set, userId), true
	}
	out := make([]string, 0, len(set)-1)
	for _, id := range set {
		if id != userId {
			out = append(out, id)
		}
	}
	return out, false
}
