package slug

import "testing"

func TestIsSlug(t *testing.T) {
	for _, s := range []string{"invoice_sale_co", "ab", "receipt2"} {
		if !IsSlug(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "a", "2fast", "Invoice", "with-dash", "con espacio"} {
		if IsSlug(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Factura de Venta (CO)": "factura_de_venta_co",
		"  Nómina  ":            "nomina",
		"pago--proveedor__":     "pago_proveedor",
		"":                      "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
