package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantalupo555/sidra-exporter/internal/browser"
	"github.com/cantalupo555/sidra-exporter/internal/browser/browsertest"
)

const home = "https://sidra.ibge.gov.br/"

func testNavigator() *Navigator {
	return New(Options{HomeURL: home, TableID: "1209", Query: "1209"})
}

// portal builds a fake SIDRA home page whose search results contain a link
// to table 1209.
func portal() *browsertest.FakePage {
	p := browsertest.New()
	p.Set(searchIcon, &browsertest.Element{})
	p.Set(searchContainer, &browsertest.Element{})
	p.Set(searchField, &browsertest.Element{})
	p.Set(searchButton, &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
		p.SetLocation(home+"pesquisa?q=1209", "Pesquisa - SIDRA")
		p.Set(TableLink("1209"), &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
			p.SetLocation(home+"tabela/1209", "Tabela 1209")
			p.Set(tablePanel, &browsertest.Element{})
		}})
	}})
	return p
}

func TestOpenTable_FollowsSearchResult(t *testing.T) {
	p := portal()

	require.NoError(t, testNavigator().OpenTable(context.Background(), p))

	navs := p.ActionsOf("navigate")
	require.Len(t, navs, 1)
	assert.Equal(t, home, navs[0].Target)

	assert.Equal(t, 1, p.Clicks(searchIcon))
	assert.Equal(t, 1, p.Clicks(searchButton))
	assert.Equal(t, 1, p.Clicks(TableLink("1209")))
	assert.Equal(t, "1209", p.Get(searchField).Value)

	url, _ := p.Location(context.Background())
	assert.Equal(t, home+"tabela/1209", url)
}

func TestOpenTable_NeverNavigatesToTableURL(t *testing.T) {
	p := portal()
	require.NoError(t, testNavigator().OpenTable(context.Background(), p))

	searchClicked, linkClicked := -1, -1
	for i, a := range p.Actions() {
		if a.Kind == "navigate" {
			assert.NotContains(t, a.Target, "1209", "direct navigation to the table")
		}
		if a.Kind == "click" && a.Target == searchIcon.String() && searchClicked < 0 {
			searchClicked = i
		}
		if a.Kind == "click" && a.Target == TableLink("1209").String() {
			linkClicked = i
		}
	}
	require.GreaterOrEqual(t, searchClicked, 0)
	assert.Less(t, searchClicked, linkClicked)
}

func TestOpenTable_Redirected(t *testing.T) {
	p := portal()
	p.Set(searchButton, &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
		p.SetLocation(home+"Tabela/1209", "Tabela 1209: População")
		p.Set(tablePanel, &browsertest.Element{})
	}})

	require.NoError(t, testNavigator().OpenTable(context.Background(), p))
	assert.Empty(t, p.ActionsOf("wait-visible")[1:], "no result link wait after redirect")
	assert.Equal(t, 0, p.Clicks(TableLink("1209")))
}

func TestOpenTable_EnterWhenButtonMissing(t *testing.T) {
	p := portal()
	p.Remove(searchButton)
	p.SetLocation(home, "SIDRA")
	p.Set(TableLink("1209"), &browsertest.Element{})

	require.NoError(t, testNavigator().OpenTable(context.Background(), p))

	var enter bool
	for _, a := range p.ActionsOf("key") {
		if a.Target == "Enter" && a.Arg == searchField.String() {
			enter = true
		}
	}
	assert.True(t, enter, "search submitted with Enter")
}

func TestOpenTable_SearchEntryMissingIsFatal(t *testing.T) {
	p := portal()
	p.Remove(searchIcon)

	err := testNavigator().OpenTable(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSearchEntryNotFound))
	assert.True(t, errors.Is(err, browser.ErrTimeout))
	assert.Empty(t, p.ActionsOf("type"))
	assert.Len(t, p.ActionsOf("navigate"), 1)
}

func TestSentinelsCarryNoStack(t *testing.T) {
	for _, err := range []error{ErrSearchEntryNotFound, ErrSearchFieldNotFound, ErrTableLinkNotFound} {
		assert.Equal(t, err.Error(), fmt.Sprintf("%+v", err))
	}
}

func TestOpenTable_FatalErrorHasStackFromCallSite(t *testing.T) {
	p := portal()
	p.Remove(searchIcon)

	err := testNavigator().OpenTable(context.Background(), p)
	require.Error(t, err)
	verbose := fmt.Sprintf("%+v", err)
	assert.Contains(t, verbose, "submitSearch")
}

func TestOpenTable_SearchFieldMissingIsFatal(t *testing.T) {
	p := portal()
	p.Set(searchContainer, &browsertest.Element{Hidden: true})

	err := testNavigator().OpenTable(context.Background(), p)
	assert.True(t, errors.Is(err, ErrSearchFieldNotFound))
}

func TestOpenTable_LinkMissingIsFatal(t *testing.T) {
	p := portal()
	p.Set(searchButton, &browsertest.Element{})
	p.Set(resultsArea, &browsertest.Element{
		HTML: `<body><a href="/tabela/1209">Tabela 1209</a><a href="/ajuda">Ajuda</a></body>`,
	})

	err := testNavigator().OpenTable(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableLinkNotFound))
	assert.True(t, strings.Contains(err.Error(), "/tabela/1209"), err.Error())
	for _, a := range p.ActionsOf("navigate") {
		assert.Equal(t, home, a.Target)
	}
}

func TestOpenTable_PanelTimeoutIsNotFatal(t *testing.T) {
	p := portal()
	p.Set(searchButton, &browsertest.Element{OnClick: func(p *browsertest.FakePage) {
		p.SetLocation(home+"tabela/1209", "Tabela 1209")
	}})

	assert.NoError(t, testNavigator().OpenTable(context.Background(), p))
}

func TestTableLink(t *testing.T) {
	sel := TableLink("1209")
	assert.Equal(t, browser.ByXPath, sel.By)
	assert.Contains(t, sel.Query, "tabela/1209")
	assert.Contains(t, sel.Query, "Tabela=1209")
}
