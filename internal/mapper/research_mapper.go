package mapper

import (
	"github.com/OussamaSEBROU/the-senctuary/internal/dto"
	"github.com/OussamaSEBROU/the-senctuary/internal/entity"
	"github.com/OussamaSEBROU/the-senctuary/internal/session"
)

type ResearchMapper struct{}

func NewResearchMapper() *ResearchMapper {
	return &ResearchMapper{}
}

func (m *ResearchMapper) ToManuscriptResponse(ms *entity.Manuscript) dto.ManuscriptResponse {
	return dto.ManuscriptResponse{
		Id:          ms.Id,
		DisplayName: ms.DisplayName,
		PreviewURL:  ms.PreviewHandle,
		Resumable:   ms.Resumable(),
		UploadedAt:  ms.CreatedAt,
	}
}

func (m *ResearchMapper) ToConversationResponse(c *entity.Conversation) *dto.ConversationResponse {
	if c == nil {
		return nil
	}

	axioms := make([]dto.AxiomResponse, len(c.Axioms))
	for i, a := range c.Axioms {
		axioms[i] = dto.AxiomResponse{Axiom: a.Label, Definition: a.Explanation}
	}

	turns := make([]dto.TurnResponse, len(c.Turns))
	for i, t := range c.Turns {
		turns[i] = dto.TurnResponse{Speaker: t.Speaker, Text: t.Text, CreatedAt: t.CreatedAt}
	}

	return &dto.ConversationResponse{
		Id:             c.Id,
		Title:          c.Title,
		Manuscript:     m.ToManuscriptResponse(&c.Manuscript),
		Axioms:         axioms,
		Turns:          turns,
		LastActivityAt: c.LastActivityAt,
	}
}

func (m *ResearchMapper) ToSummaryResponse(c *entity.Conversation) dto.ConversationSummaryResponse {
	return dto.ConversationSummaryResponse{
		Id:             c.Id,
		Title:          c.Title,
		TurnCount:      len(c.Turns),
		Resumable:      c.Manuscript.Resumable(),
		LastActivityAt: c.LastActivityAt,
	}
}

func (m *ResearchMapper) ToSessionResponse(snap session.Snapshot) *dto.SessionResponse {
	summaries := make([]dto.ConversationSummaryResponse, len(snap.Conversations))
	for i, c := range snap.Conversations {
		summaries[i] = m.ToSummaryResponse(c)
	}

	return &dto.SessionResponse{
		State:         snap.State,
		Status:        snap.Status,
		Busy:          snap.Busy,
		Active:        m.ToConversationResponse(snap.Active),
		Conversations: summaries,
	}
}
