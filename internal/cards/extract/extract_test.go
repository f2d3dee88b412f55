package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ExtractSuite struct {
	suite.Suite
	data *Tree
}

func (s *ExtractSuite) SetupTest() {
	raw := `{"outage":{"region":"north","severity":"high","details":{"cause":"storm"}},"eta":"18:00","internal":{"ticket":42}}`
	s.data = &Tree{}
	s.Require().NoError(json.Unmarshal([]byte(raw), s.data))
}

func TestExtractSuite(t *testing.T) {
	suite.Run(t, new(ExtractSuite))
}

func (s *ExtractSuite) marshal(tree *Tree) string {
	out, err := json.Marshal(tree)
	s.Require().NoError(err)
	return string(out)
}

func (s *ExtractSuite) TestExtractFields() {
	s.Run("keeps only the requested paths", func() {
		got := ExtractFields(s.data, []string{"outage.region", "eta"})
		s.Equal(`{"outage":{"region":"north"},"eta":"18:00"}`, s.marshal(got))
	})

	s.Run("nested path keeps the enclosing structure", func() {
		got := ExtractFields(s.data, []string{"outage.details.cause"})
		s.Equal(`{"outage":{"details":{"cause":"storm"}}}`, s.marshal(got))
	})

	s.Run("absent paths are skipped silently", func() {
		got := ExtractFields(s.data, []string{"outage.region", "does.not.exist"})
		s.Equal(`{"outage":{"region":"north"}}`, s.marshal(got))
	})

	s.Run("a whole subtree can be selected", func() {
		got := ExtractFields(s.data, []string{"internal"})
		s.Equal(`{"internal":{"ticket":42}}`, s.marshal(got))
	})

	s.Run("nil data yields an empty tree", func() {
		got := ExtractFields(nil, []string{"a"})
		s.Require().NotNil(got)
		s.Zero(got.Len())
	})
}
