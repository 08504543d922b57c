package model

// UserDoc is the external profile collaborator's document. Older clients
// wrote the avatar under different field names, so all four are read and
// the first non-empty one wins.
type UserDoc struct {
	Id           string `bson:"_id"`
	Name         string `bson:"name"`
	University   string `bson:"university,omitempty"`
	ProfileImage string `bson:"profile_image,omitempty"`
	ImageUrl     string `bson:"image_url,omitempty"`
	Image        string `bson:"image,omitempty"`
	PhotoURL     string `bson:"photo_url,omitempty"`
}

func (UserDoc) CollectionName() string {
	return "users"
}
