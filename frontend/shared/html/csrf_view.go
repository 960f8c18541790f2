package html

// CSRFFormScript adds the CSRF cookie value as a hidden _csrf field to every
// POST form at submit time, including selects that submit on change.
func CSRFFormScript() string {
	return `<script>
(function () {
  function csrfToken() {
    var match = document.cookie.match(/(?:^|;\s*)X-CSRF-Token=([^;]*)/);
    return match ? decodeURIComponent(match[1]) : "";
  }

  function attach(form) {
    if (!form || (form.getAttribute("method") || "GET").toUpperCase() !== "POST") return;
    var token = csrfToken();
    if (!token) return;
    var input = form.querySelector("input[name='_csrf']");
    if (!input) {
      input = document.createElement("input");
      input.type = "hidden";
      input.name = "_csrf";
      form.appendChild(input);
    }
    input.value = token;
  }

  document.addEventListener("submit", function (e) { attach(e.target); }, true);
  var submit = HTMLFormElement.prototype.submit;
  HTMLFormElement.prototype.submit = function () {
    attach(this);
    return submit.call(this);
  };
})();
</script>`
}
