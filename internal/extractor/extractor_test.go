package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
)

type stubSource struct {
	html  string
	err   error
	calls int
}

func (s *stubSource) Document(ctx context.Context, src menu.SourceConfig) (string, error) {
	s.calls++
	return s.html, s.err
}

func TestExtract_EndToEnd(t *testing.T) {
	html := `<html><body>
		<ul class="menu"><li>Soup: Bean</li><li>Goulash</li><li>Soup: Bean</li></ul>
	</body></html>`

	for _, container := range []string{"", "ul.menu"} {
		t.Run("container="+container, func(t *testing.T) {
			result := New(Options{}).ExtractHTML(html, menu.SourceConfig{
				Container: container,
				Selectors: []string{"ul.menu li"},
			})
			assert.Equal(t, []string{"Soup: Bean", "Goulash"}, result.Items)
		})
	}
}

func TestExtract_BlockFallbackFiresBelowThreshold(t *testing.T) {
	html := `<html><body>
		<div class="specials"><p class="dish">Tomato soup</p><p class="dish">Chicken schnitzel</p></div>
		<div class="weekly">Beef goulash<br>Fried cheese<br/>Vegetable risotto<br>6,50 €<br>XL</div>
	</body></html>`

	result := New(Options{}).ExtractHTML(html, menu.SourceConfig{
		Selectors:      []string{"p.dish"},
		BlockSelectors: []string{"div.weekly"},
	})

	assert.Equal(t, []string{
		"Tomato soup",
		"Chicken schnitzel",
		"Beef goulash",
		"Fried cheese",
		"Vegetable risotto",
	}, result.Items)
	assert.Contains(t, result.Trace, "block:")
	assert.NotContains(t, result.Trace, "table:")
}

func TestExtract_BlockFallbackSkippedAtThreshold(t *testing.T) {
	html := `<html><body>
		<ul class="menu">
			<li>Tomato soup</li><li>Beef goulash</li><li>Fried cheese</li>
			<li>Vegetable risotto</li><li>Chicken schnitzel</li>
		</ul>
		<div class="weekly">Pancakes<br>Apple strudel</div>
	</body></html>`

	result := New(Options{}).ExtractHTML(html, menu.SourceConfig{
		Selectors:      []string{"ul.menu li"},
		BlockSelectors: []string{"div.weekly"},
	})

	assert.Len(t, result.Items, 5)
	assert.NotContains(t, result.Items, "Pancakes")
	assert.NotContains(t, result.Trace, "block:")
	assert.Contains(t, result.Trace, "result: 5 item(s) from direct")
}

func TestExtract_SelectorOrder(t *testing.T) {
	html := `<html><body>
		<p class="main">Goulash</p><p class="main">Risotto</p>
		<h3 class="soup">Soup: Bean</h3>
	</body></html>`

	result := New(Options{}).ExtractHTML(html, menu.SourceConfig{
		Selectors: []string{"h3.soup", "p.main"},
	})
	assert.Equal(t, []string{"Soup: Bean", "Goulash", "Risotto"}, result.Items)
}

func TestExtract_WholeDocumentBlockFallback(t *testing.T) {
	html := `<html><head><script>var menu = "Fake dish";</script></head><body>
		<div class="content">
			<h2>Denné menu</h2>
			<p>Pondelok</p>
			<p>Polievka: Fazuľová • Kuracie prsia s ryžou • Vyprážaný syr</p>
			<p>5,90 €</p>
		</div>
	</body></html>`

	result := New(Options{}).ExtractHTML(html, menu.SourceConfig{
		Container: "div.content",
		Selectors: []string{"ul.missing li"},
	})

	assert.Equal(t, []string{"Polievka: Fazuľová", "Kuracie prsia s ryžou", "Vyprážaný syr"}, result.Items)
	assert.Contains(t, result.Trace, `scope: container "div.content" matched 1 element(s)`)
}

func TestExtract_TableFallback(t *testing.T) {
	html := `<html><body>
		<div id="menu">
			<table class="lunch">
				<tr><td>Hrachová polievka</td></tr>
				<tr><td>Segedínsky guláš</td><td>6,90 €</td></tr>
				<tr><td>Zeleninové rizoto</td><td>6,50 €</td></tr>
			</table>
		</div>
	</body></html>`

	result := New(Options{}).ExtractHTML(html, menu.SourceConfig{
		Selectors:      []string{"p.none"},
		BlockSelectors: []string{"div.none"},
	})

	assert.Equal(t, []string{"Hrachová polievka", "Segedínsky guláš 6,90 €", "Zeleninové rizoto 6,50 €"}, result.Items)
	assert.Contains(t, result.Trace, "table: 1 table(s) found")
	assert.Contains(t, result.Trace, "result: 3 item(s) from table")
}

func TestExtract_ContainerMissing(t *testing.T) {
	html := `<html><body><ol><li>Goulash</li><li>Risotto</li><li>Strudel</li></ol></body></html>`

	result := New(Options{}).ExtractHTML(html, menu.SourceConfig{
		Container: "#does-not-exist",
		Selectors: []string{"ol li"},
	})
	assert.Equal(t, []string{"Goulash", "Risotto", "Strudel"}, result.Items)
	assert.Contains(t, result.Trace, "not found, using whole document")
}

func TestExtract_ConfigurableThresholdAndCap(t *testing.T) {
	html := `<html><body><ul>
		<li>Goulash</li><li>Risotto</li><li>Strudel</li>
	</ul><div class="more">Pancakes<br>Pizza margherita</div></body></html>`

	src := menu.SourceConfig{Selectors: []string{"ul li"}, BlockSelectors: []string{"div.more"}}

	result := New(Options{MinItems: 5}).ExtractHTML(html, src)
	assert.Equal(t, []string{"Goulash", "Risotto", "Strudel", "Pancakes", "Pizza margherita"}, result.Items)

	capped := New(Options{MinItems: 5, MaxLines: 4}).ExtractHTML(html, src)
	assert.Equal(t, []string{"Goulash", "Risotto", "Strudel", "Pancakes"}, capped.Items)
}

func TestExtract_NothingFound(t *testing.T) {
	result := New(Options{}).ExtractHTML(`<html><body></body></html>`, menu.SourceConfig{Selectors: []string{"li"}})
	require.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
	assert.Contains(t, result.Trace, "result: 0 item(s) from none")
}

func TestExtract_InvalidSelectorDoesNotPanic(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<ul><li>Goulash</li></ul>`))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		result := New(Options{}).Extract(doc, menu.SourceConfig{Selectors: []string{"li[[["}, BlockSelectors: []string{":::"}})
		assert.NotNil(t, result.Items)
	})
}

func TestExtract_ReadabilityStageIsOptIn(t *testing.T) {
	assert.Equal(t, []string{"direct", "block", "table"}, New(Options{}).StageNames())
	assert.Equal(t, []string{"direct", "block", "table", "article"}, New(Options{ReadabilityFallback: true}).StageNames())
}

func TestFromURL(t *testing.T) {
	ex := New(Options{})
	src := menu.SourceConfig{URL: "https://ndegust.example/menu", Selectors: []string{"li"}}

	t.Run("success", func(t *testing.T) {
		source := &stubSource{html: "<ul><li>Goulash</li><li>Risotto</li><li>Strudel</li></ul>"}
		result := ex.FromURL(context.Background(), source, src)
		assert.Equal(t, []string{"Goulash", "Risotto", "Strudel"}, result.Items)
		assert.True(t, strings.HasPrefix(result.Trace, "fetch https://ndegust.example/menu: ok"))
		assert.Equal(t, 1, source.calls)
	})

	t.Run("fetch failure degrades to empty", func(t *testing.T) {
		source := &stubSource{err: errors.New("HTTP error: 503 Service Unavailable")}
		result := ex.FromURL(context.Background(), source, src)
		require.NotNil(t, result.Items)
		assert.Empty(t, result.Items)
		assert.Contains(t, result.Trace, "failed")
		assert.Contains(t, result.Trace, "503")
	})

	t.Run("missing url", func(t *testing.T) {
		source := &stubSource{}
		result := ex.FromURL(context.Background(), source, menu.SourceConfig{})
		assert.Empty(t, result.Items)
		assert.Equal(t, 0, source.calls)
	})
}

func TestFilterFragments(t *testing.T) {
	got := filterFragments([]string{"6,50 €", "7 EUR", "12.90€", "4,-", "€ 5", "Soup", "abc", "  Goulash ", "Pivo 0,5l 2,50 €"})
	assert.Equal(t, []string{"Soup", "Goulash", "Pivo 0,5l 2,50 €"}, got)
}

func TestBarePriceRe(t *testing.T) {
	for i, in := range []string{"6,50 €", "6 eur", "6.5 euro", "10,-", "120 Kč"} {
		assert.True(t, barePriceRe.MatchString(in), fmt.Sprintf("case %d: %q", i, in))
	}
	assert.False(t, barePriceRe.MatchString("Goulash 6,50 €"))
}

func TestExtract_BlockElementsStaySeparate(t *testing.T) {
	html := `<html><head><title>Ndegust</title></head><body>
		<div class="m"><section>Hrachová polievka</section><section>Segedínsky guláš</section><article>Vyprážaný syr</article></div>
	</body></html>`
	want := []string{"Hrachová polievka", "Segedínsky guláš", "Vyprážaný syr"}

	t.Run("block selector", func(t *testing.T) {
		result := New(Options{}).ExtractHTML(html, menu.SourceConfig{BlockSelectors: []string{"div.m"}})
		assert.Equal(t, want, result.Items)
	})

	t.Run("whole document skips head", func(t *testing.T) {
		result := New(Options{}).ExtractHTML(html, menu.SourceConfig{})
		assert.Equal(t, want, result.Items)
		assert.NotContains(t, result.Items, "Ndegust")
	})
}

func TestExtract_ArticleStageAddsLinesAfterEarlierStages(t *testing.T) {
	paragraphs := []string{
		"Kuracie prsia na grile s pečenými zemiakmi, zeleninovým šalátom a jogurtovým dresingom, podávané s domácim pečivom a bylinkovým maslom, cena obsahuje aj nápoj.",
		"Bravčová panenka na dubákovej omáčke s maslovou ryžou a grilovanou zeleninou, dochutená čerstvým tymiánom, rozmarínom a trochou bieleho vína z Malých Karpát.",
		"Zeleninové rizoto so sušenými paradajkami, baby špenátom a hoblinami parmezánu, posypané opraženými píniovými orieškami a pokvapkané olivovým olejom, vhodné aj pre vegetariánov.",
		"Domáce tvarohové knedle s jahodovou omáčkou, maslovou strúhankou a práškovým cukrom, podávané teplé, s kopčekom vanilkovej zmrzliny a mätou z vlastnej záhrady.",
	}
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<p>" + p + "</p>\n")
	}
	html := `<html><head><title>Obed</title></head><body>
		<div class="top"><h3 class="soup">Fazuľová polievka</h3><a href="/kontakt">Kontakt</a></div>
		<article><div class="text">` + body.String() + `</div></article>
	</body></html>`

	src := menu.SourceConfig{
		URL:            "https://ndegust.example/menu",
		Selectors:      []string{"h3.soup"},
		BlockSelectors: []string{"div.none"},
	}

	without := New(Options{}).ExtractHTML(html, src)
	assert.Equal(t, []string{"Fazuľová polievka"}, without.Items)

	result := New(Options{ReadabilityFallback: true}).ExtractHTML(html, src)
	require.Greater(t, len(result.Items), 2, result.Trace)
	assert.Equal(t, "Fazuľová polievka", result.Items[0])
	assert.Contains(t, result.Items, paragraphs[0])
	assert.Contains(t, result.Items[1:], paragraphs[1])
	assert.Regexp(t, `article: \+\d+ item\(s\)`, result.Trace)
	assert.Contains(t, result.Trace, "from direct+article")
}
