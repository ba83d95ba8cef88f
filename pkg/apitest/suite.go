package apitest

import (
	"context"

	"github.com/stretchr/testify/suite"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/catalog"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/expect"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/fixture"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/jsonrpc"
)

// Suite is a testify suite with one Env per suite run. Embed it and set
// the exported fields before suite.Run:
//
//	type HostSuite struct{ apitest.Suite }
//
//	func TestHosts(t *testing.T) {
//		s := &HostSuite{}
//		s.Fixtures = graph
//		suite.Run(t, s)
//	}
type Suite struct {
	suite.Suite

	// Settings are used as is when API.URL is set; otherwise they are
	// loaded with LoadSettings(SettingsFile).
	Settings     Settings
	SettingsFile string

	// Fixtures are built once in SetupSuite.
	Fixtures fixture.Graph

	// Options are passed to NewEnv.
	Options []Option

	env *Env
}

// SetupSuite creates the Env and builds Fixtures.
func (s *Suite) SetupSuite() {
	settings := s.Settings
	if settings.API.URL == "" {
		loaded, err := LoadSettings(s.SettingsFile)
		s.Require().NoError(err, "apitest: cannot load settings")
		settings = loaded
	}

	env, err := NewEnv(context.Background(), settings, s.Options...)
	s.Require().NoError(err, "apitest: cannot create environment")
	s.env = env

	if s.Fixtures.Len() > 0 {
		s.Require().NoError(env.Build(context.Background(), s.Fixtures), "apitest: cannot build fixtures")
	}
}

// TearDownSuite removes the fixtures and closes the Env.
func (s *Suite) TearDownSuite() {
	if s.env == nil {
		return
	}
	s.NoError(s.env.Close(context.Background()))
	s.env = nil
}

// Env returns the suite's environment.
func (s *Suite) Env() *Env { return s.env }

// Build creates more fixtures.
func (s *Suite) Build(g fixture.Graph) {
	s.Require().NoError(s.env.Build(context.Background(), g))
}

// Call sends method as the admin user and checks the outcome.
func (s *Suite) Call(method string, params any, exp expect.Expectation, opts ...CallOption) *jsonrpc.Response {
	return s.env.Call(s.T(), method, params, exp, opts...)
}

// RunCatalog runs every case of c as a subtest.
func (s *Suite) RunCatalog(c *catalog.Catalog) {
	s.env.RunCatalog(s.T(), c)
}
