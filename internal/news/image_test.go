package news

import "testing"

func TestLeadImage(t *testing.T) {
	tests := []struct {
		name string
		body string
		base string
		want string
	}{
		{
			name: "first https image",
			body: `<p>texto</p><img src="https://rccelta.es/a.jpg"><img src="https://rccelta.es/b.jpg">`,
			want: "https://rccelta.es/a.jpg",
		},
		{
			name: "relative image resolved against base",
			body: `<img alt="x" src="/uploads/foto.png"/>`,
			base: "https://rccelta.es/noticias/1",
			want: "https://rccelta.es/uploads/foto.png",
		},
		{
			name: "http image skipped",
			body: `<img src="http://insecure.example/a.jpg"><img src="https://rccelta.es/b.jpg">`,
			want: "https://rccelta.es/b.jpg",
		},
		{
			name: "no image",
			body: `<p>sen imaxes</p>`,
			want: "",
		},
		{
			name: "relative without base",
			body: `<img src="foto.png">`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LeadImage(tt.body, tt.base); got != tt.want {
				t.Errorf("LeadImage() = %q, want %q", got, tt.want)
			}
		})
	}
}
