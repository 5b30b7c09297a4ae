package usecase_test

import "studysync/internal/modules/study/dto"

func studyReview(projectID string, index int, learned bool, difficult *bool) dto.RecordReviewInput {
	return dto.RecordReviewInput{ProjectID: projectID, Index: index, Learned: learned, Difficult: difficult}
}

func studyRename(projectID, label, name string) dto.RenameSpeakerInput {
	return dto.RenameSpeakerInput{ProjectID: projectID, Label: label, Name: name}
}
