package apitest

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/StricklySoft/stricklysoft-apitest/internal/testutil/fakeapi"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/catalog"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/expect"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/fixture"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/reference"
)

type serviceSuite struct {
	Suite
}

func TestServiceSuite(t *testing.T) {
	srv := fakeapi.New(t)
	s := &serviceSuite{}
	s.Settings = fakeSettings(srv)
	s.Fixtures = fixture.Graph{}.
		Add("services", "root", map[string]any{"name": "root", "algorithm": 1, "sortorder": 0})
	suite.Run(t, s)
}

func (s *serviceSuite) TestChildService() {
	resp := s.Call("service.create", map[string]any{
		"name": "leaf", "algorithm": 0, "sortorder": 1,
		"parents": []any{map[string]any{"serviceid": ":service:root"}},
	}, expect.Success())
	ids, err := resp.IDs("serviceids")
	s.Require().NoError(err)

	n, err := s.Env().DB().Count(s.T().Context(),
		`SELECT * FROM services_links WHERE serviceupid = ? AND servicedownid = ?`,
		s.Env().ID(reference.KindService, "root"), ids[0])
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *serviceSuite) TestBuildMore() {
	s.Build(fixture.Graph{}.Add("services", "sibling", map[string]any{"name": "sibling", "algorithm": 0, "sortorder": 2}))
	s.NotEmpty(s.Env().ID(reference.KindService, "sibling"))
}

func (s *serviceSuite) TestCatalog() {
	c, err := catalog.Builtin("service.create")
	s.Require().NoError(err)
	s.RunCatalog(c)
}
