package dto

// LikeReviewRequest is posted by the review collaborator when the
// authenticated user likes a review.
type LikeReviewRequest struct {
	ReviewOwnerID string `json:"review_owner_id" binding:"required,uuid"`
	MovieTitle    string `json:"movie_title" binding:"max=255"`
}

// CommentReviewRequest carries the comment text so mentions can be resolved.
type CommentReviewRequest struct {
	ReviewOwnerID  string   `json:"review_owner_id" binding:"required,uuid"`
	MovieTitle     string   `json:"movie_title" binding:"max=255"`
	Text           string   `json:"text" binding:"required,min=1,max=5000"`
	ParticipantIDs []string `json:"participant_ids" binding:"omitempty,dive,uuid"`
}
